package decoder

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/WendelHime/goswarm/internal/shared/models"
	"github.com/jackpal/bencode-go"
)

var ErrPieceCountMismatch = fmt.Errorf("metainfo must describe %d pieces", models.TotalPieces)

type MetainfoDecoder interface {
	Decode(io.Reader) (models.Metainfo, error)
}

type metainfoDecoder struct{}

func NewDecoder() MetainfoDecoder {
	return metainfoDecoder{}
}

func (metainfoDecoder) Decode(r io.Reader) (models.Metainfo, error) {
	var meta models.Metainfo
	if err := bencode.Unmarshal(r, &meta); err != nil {
		return models.Metainfo{}, fmt.Errorf("decode metainfo: %w", err)
	}
	if err := ValidateMetainfo(meta); err != nil {
		return models.Metainfo{}, err
	}
	return meta, nil
}

// EncodeMetainfo writes meta as a bencoded dictionary.
func EncodeMetainfo(w io.Writer, meta models.Metainfo) error {
	if err := ValidateMetainfo(meta); err != nil {
		return err
	}
	return bencode.Marshal(w, meta)
}

func ValidateMetainfo(meta models.Metainfo) error {
	if meta.Pieces != models.TotalPieces {
		return ErrPieceCountMismatch
	}
	if meta.Name == "" || meta.Name == "." || meta.Name == ".." || meta.Name != filepath.Base(meta.Name) {
		return errors.New("metainfo name must be a plain file name")
	}
	if _, err := strconv.Atoi(strings.TrimSuffix(meta.Name, ".txt")); err == nil {
		return errors.New("metainfo name collides with a piece file")
	}
	if meta.Length < 0 {
		return errors.New("metainfo length is negative")
	}
	return nil
}
