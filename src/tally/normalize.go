package tally

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stake-plus/dao-proposals/src/shared/gov"
)

const proposalURL = "https://www.tally.xyz/gov/%s/proposal/%s"

var choiceLabels = []struct {
	voteType string
	label    string
}{
	{"for", "For"},
	{"against", "Against"},
	{"abstain", "Abstain"},
}

func (r rawProposal) normalize(slug string) (gov.Proposal, error) {
	created, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return gov.Proposal{}, fmt.Errorf("proposal %s createdAt: %w", r.ID, err)
	}

	p := gov.Proposal{
		ID:         r.ID,
		Source:     gov.ModeOnchain,
		Space:      slug,
		Title:      r.Metadata.Title,
		Body:       r.Metadata.Description,
		State:      strings.ToLower(r.Status),
		Type:       "governor",
		Created:    created,
		Discussion: r.Metadata.DiscourseURL,
		OnchainID:  r.OnchainID,
		Choices:    []string{},
		Scores:     []float64{},
	}
	if r.Proposer != nil {
		p.Author = r.Proposer.Address
	}
	if r.Governor != nil {
		p.Governor = r.Governor.Name
		p.Network = r.Governor.ChainID
	}
	if r.Start != nil {
		p.Start, _ = parseTimestamp(r.Start.Timestamp)
	}
	if r.End != nil {
		p.End, _ = parseTimestamp(r.End.Timestamp)
	}
	if r.Quorum != "" {
		p.Quorum, _ = strconv.ParseFloat(r.Quorum, 64)
	}
	if r.OnchainID != "" {
		p.Link = fmt.Sprintf(proposalURL, slug, r.OnchainID)
	}

	for _, choice := range choiceLabels {
		for _, vs := range r.VoteStats {
			if !strings.EqualFold(vs.Type, choice.voteType) {
				continue
			}
			score, _ := strconv.ParseFloat(vs.VotesCount, 64)
			p.Choices = append(p.Choices, choice.label)
			p.Scores = append(p.Scores, score)
			p.ScoresTotal += score
			p.Votes += vs.VotersCount
		}
	}
	return p, nil
}

func parseTimestamp(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Unix(), nil
		}
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return secs, nil
	}
	return 0, fmt.Errorf("unrecognised timestamp %q", raw)
}
