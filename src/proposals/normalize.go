package proposals

import (
	"html"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/stake-plus/dao-proposals/src/shared/gov"
)

// newSanitizer keeps markdown-friendly formatting and strips everything else.
func newSanitizer() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AllowElements("p", "br", "strong", "em", "code", "pre", "blockquote")
	p.AllowElements("ul", "ol", "li")
	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("href").OnElements("a")
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoFollowOnLinks(true)
	return p
}

// normalize turns an upstream batch into the page served to clients:
// sanitized text, stamped source and space, unique ids, strictly past the
// cursor, ordered by creation time, at most req.Limit long.
//
// The cursor is an exclusive timestamp, so proposals sharing a creation time
// never straddle two pages. When the first timestamp group alone exceeds the
// limit it is served whole, and widen reports that the batch ended inside the
// group and a larger upstream window is needed to see all of it.
func (s *Service) normalize(req Request, mode gov.Mode, batch gov.Batch) (page gov.Page, widen bool) {
	valid := s.clean(req, mode, batch.Proposals)
	if len(valid) == 0 || (len(valid) <= req.Limit && !batch.More) {
		return gov.Page{Proposals: valid}, false
	}

	// the first proposal left for a later page, or the last one seen when
	// the upstream holds more past the batch
	cut := len(valid)
	boundary := valid[cut-1].Created
	if cut > req.Limit {
		cut = req.Limit
		boundary = valid[cut].Created
	}
	for cut > 0 && valid[cut-1].Created == boundary {
		cut--
	}
	if cut == 0 {
		for cut < len(valid) && valid[cut].Created == valid[0].Created {
			cut++
		}
		widen = cut == len(valid) && batch.More
	}

	page = gov.Page{Proposals: valid[:cut]}
	next := valid[cut-1].Created
	page.NextCursor = &next
	return page, widen
}

// clean sanitizes and orders raw upstream proposals, dropping those without
// an id, repeated ids and anything not strictly past the cursor.
func (s *Service) clean(req Request, mode gov.Mode, raw []gov.Proposal) []gov.Proposal {
	q := gov.PageQuery{Cursor: req.Cursor, Limit: req.Limit, Order: req.Order}

	seen := make(map[string]struct{}, len(raw))
	out := make([]gov.Proposal, 0, len(raw))
	for _, p := range raw {
		if p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		if !q.Accepts(p.Created) {
			continue
		}
		seen[p.ID] = struct{}{}

		p.Source = mode
		p.Space = req.Space
		// entities are decoded first so escaped markup is sanitized too
		p.Title = strings.TrimSpace(s.strict.Sanitize(html.UnescapeString(p.Title)))
		p.Body = strings.TrimSpace(s.sanitizer.Sanitize(html.UnescapeString(p.Body)))
		if p.Choices == nil {
			p.Choices = []string{}
		}
		if p.Scores == nil {
			p.Scores = []float64{}
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Created != b.Created {
			if req.Order == gov.OrderDesc {
				return a.Created > b.Created
			}
			return a.Created < b.Created
		}
		return a.ID < b.ID
	})
	return out
}
