package pipeline

import (
	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/region"
	"github.com/IshaanNene/newsgoat/internal/text"
	"github.com/IshaanNene/newsgoat/internal/types"
)

// NormalizeMiddleware strips markup from title and body and bounds the body
// length. Titles are not truncated.
type NormalizeMiddleware struct {
	MaxBodyLength int
}

func (m *NormalizeMiddleware) Name() string { return "normalize" }

func (m *NormalizeMiddleware) Process(rec *types.MediaRecord) (*types.MediaRecord, error) {
	limit := m.MaxBodyLength
	if limit <= 0 {
		limit = config.DefaultConfig().Normalize.MaxBodyLength
	}
	rec.Title = text.StripMarkup(rec.Title)
	rec.Body = text.Truncate(text.StripMarkup(rec.Body), limit)
	return rec, nil
}

// TagMiddleware adds the regions whose keyphrases occur in the title or body.
// Regions already resolved by the source are kept.
type TagMiddleware struct {
	Tagger *region.Tagger
}

func (m *TagMiddleware) Name() string { return "tag" }

func (m *TagMiddleware) Process(rec *types.MediaRecord) (*types.MediaRecord, error) {
	if m.Tagger == nil {
		return rec, nil
	}
	rec.AddRegions(m.Tagger.Tag(rec.Title, rec.Body)...)
	return rec, nil
}

// RequiredFieldsMiddleware drops records without a URL or a title. An empty
// body or region set is allowed.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(rec *types.MediaRecord) (*types.MediaRecord, error) {
	if rec.URL == "" || rec.Title == "" {
		return nil, nil
	}
	if err := config.ValidateURL(rec.URL); err != nil {
		return nil, err
	}
	return rec, nil
}
