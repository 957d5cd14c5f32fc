package export

import (
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Writer types accepted by NewWriterFromConfig.
const (
	TypeYAML = "yaml"
	TypeM3U  = "m3u"
)

// NewWriterFromConfig creates the writer named by typ.
func NewWriterFromConfig(typ, dir string, settings map[string]any) (Writer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("export dir is empty")
	}

	var (
		w   Writer
		err error
	)
	switch strings.ToLower(typ) {
	case TypeYAML, "":
		w, err = NewYAMLWriter(dir, settings)
	case TypeM3U:
		w, err = NewM3UWriter(dir, settings)
	default:
		return nil, errors.Newf("unsupported export type: %s", typ)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s writer", typ)
	}
	zlog.Info().Msgf("registered export writer: type=%s dir=%s", w.Name(), dir)
	return w, nil
}
