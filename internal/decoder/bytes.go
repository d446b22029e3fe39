package decoder

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

var ErrLineTooLong = errors.New("line too long")

// ReadLine reads up to and excluding the next '\n', dropping a trailing
// '\r'. A final line without a terminator is returned as is; io.EOF is only
// returned when nothing was read.
func ReadLine(r *bufio.Reader, max int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		// the terminator may add "\r\n" on top of max bytes of content
		if len(line) > max+2 {
			return nil, ErrLineTooLong
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(line) > 0 {
			break
		}
		return nil, err
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) > max {
		return nil, ErrLineTooLong
	}
	return line, nil
}
