package decoder

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/WendelHime/goswarm/internal/shared/models"
)

const (
	prefixGet   = "GET:"
	prefixOK    = "OK:"
	prefixError = "ERROR:"
)

// EncodeTransferMessage renders a GET, OK or ERROR line without the
// trailing line break. OK content has its line breaks removed so the reply
// stays on one line.
func EncodeTransferMessage(msg models.Message) ([]byte, error) {
	switch msg.Kind {
	case models.MessageGet:
		return []byte(prefixGet + strconv.Itoa(int(msg.Index))), nil
	case models.MessageOK:
		return append([]byte(prefixOK), stripLineBreaks(msg.Content)...), nil
	case models.MessageError:
		return []byte(prefixError + " " + strings.ReplaceAll(msg.Text, "\n", " ")), nil
	default:
		return nil, ErrMalformed
	}
}

// ParseTransferRequest reads a "GET:<n>" line. Any integer is accepted;
// whether the piece exists is for the store to answer.
func ParseTransferRequest(line []byte) (models.Message, error) {
	s, ok := strings.CutPrefix(string(line), prefixGet)
	if !ok {
		return models.Message{}, ErrMalformed
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return models.Message{}, ErrMalformed
	}
	return models.Message{Kind: models.MessageGet, Index: models.PieceIndex(n)}, nil
}

// ParseTransferReply reads an "OK:" or "ERROR:" line.
func ParseTransferReply(line []byte) (models.Message, error) {
	switch {
	case bytes.HasPrefix(line, []byte(prefixOK)):
		content := bytes.Clone(line[len(prefixOK):])
		return models.Message{Kind: models.MessageOK, Content: content}, nil
	case bytes.HasPrefix(line, []byte(prefixError)):
		text := strings.TrimSpace(string(line[len(prefixError):]))
		return models.Message{Kind: models.MessageError, Text: text}, nil
	default:
		return models.Message{}, ErrMalformed
	}
}

// stripLineBreaks drops every CR and LF byte.
func stripLineBreaks(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c == '\n' || c == '\r' {
			continue
		}
		out = append(out, c)
	}
	return out
}
