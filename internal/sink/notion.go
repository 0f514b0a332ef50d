package sink

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/internal/store"
	"github.com/steinik-group/rentscout/pkg/notion"
)

// Notion database property names the sink writes to. The database must
// carry these columns.
const (
	propTitle      = "Listing"
	propExternalID = "External ID"
	propLink       = "Link"
	propPrice      = "Price"
	propPriceM2    = "Price per m²"
	propArea       = "Area"
	propRooms      = "Rooms"
	propDistrict   = "District"
	propCapturedAt = "Captured"
)

// NotionSink appends listings as pages of a Notion database.
type NotionSink struct {
	client notion.Client
	dbID   string
}

// NewNotion creates a Notion-backed sink for the given database.
func NewNotion(client notion.Client, dbID string) *NotionSink {
	return &NotionSink{client: client, dbID: dbID}
}

func (s *NotionSink) Name() string { return "notion" }

func (s *NotionSink) Append(ctx context.Context, l *model.CandidateListing) (string, error) {
	title := l.TitleRaw
	if title == "" {
		title = fmt.Sprintf("%d-комн, %.1f м², %s", l.Rooms, l.AreaTotal, l.District)
	}

	props := notionapi.Properties{
		propTitle: notionapi.TitleProperty{
			Title: []notionapi.RichText{{Text: &notionapi.Text{Content: title}}},
		},
		propExternalID: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: l.ExternalID}}},
		},
		propLink:    notionapi.URLProperty{URL: l.Link},
		propPrice:   notionapi.NumberProperty{Number: float64(l.Price)},
		propPriceM2: notionapi.NumberProperty{Number: float64(l.PricePerArea)},
		propArea:    notionapi.NumberProperty{Number: l.AreaTotal},
	}
	if l.Rooms != model.RoomsUnknown {
		props[propRooms] = notionapi.NumberProperty{Number: float64(l.Rooms)}
	}
	if l.District != "" {
		props[propDistrict] = notionapi.SelectProperty{Select: notionapi.Option{Name: l.District}}
	}
	if !l.CapturedAt.IsZero() {
		captured := notionapi.Date(l.CapturedAt)
		props[propCapturedAt] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &captured}}
	}

	page, err := s.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent:     notionapi.Parent{Type: notionapi.ParentTypeDatabaseID, DatabaseID: notionapi.DatabaseID(s.dbID)},
		Properties: props,
	})
	if err != nil {
		return "", eris.Wrapf(err, "sink: notion append %s", l.ExternalID)
	}
	return string(page.ID), nil
}

func (s *NotionSink) Exists(ctx context.Context, externalID string) (bool, error) {
	resp, err := s.client.QueryDatabase(ctx, s.dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: propExternalID,
			RichText: &notionapi.TextFilterCondition{Equals: externalID},
		},
		PageSize: 1,
	})
	if err != nil {
		return false, eris.Wrapf(err, "sink: notion exists %s", externalID)
	}
	return len(resp.Results) > 0, nil
}

func (s *NotionSink) ListSeen(ctx context.Context) ([]store.SeenMeta, error) {
	pages, err := notion.QueryAll(ctx, s.client, s.dbID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sink: notion list")
	}

	metas := make([]store.SeenMeta, 0, len(pages))
	for _, p := range pages {
		meta := store.SeenMeta{SinkRecordID: string(p.ID), SeenAt: p.CreatedTime}
		if rt, ok := p.Properties[propExternalID].(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			meta.ExternalID = rt.RichText[0].PlainText
			if meta.ExternalID == "" && rt.RichText[0].Text != nil {
				meta.ExternalID = rt.RichText[0].Text.Content
			}
		}
		if u, ok := p.Properties[propLink].(*notionapi.URLProperty); ok {
			meta.Link = u.URL
		}
		if meta.ExternalID == "" {
			continue
		}
		metas = append(metas, meta)
	}
	return metas, nil
}
