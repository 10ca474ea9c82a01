package bot

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"newsdesk/internal/tools"
)

const (
	telegramMessageMaxLength = 4096

	mediumSummaryRunes = 160
)

// pager packs blocks into messages that fit Telegram's length limit. Every
// message after the first starts with the continuation header.
type pager struct {
	header         string
	continueHeader string
	messages       []string
	current        strings.Builder
}

func newPager(header, continueHeader string) *pager {
	p := &pager{header: header, continueHeader: continueHeader}
	p.current.WriteString(header)

	return p
}

func (p *pager) add(block string) {
	if p.current.Len()+len(block) > telegramMessageMaxLength {
		p.messages = append(p.messages, p.current.String())
		p.current.Reset()
		p.current.WriteString(p.continueHeader)
	}

	if room := telegramMessageMaxLength - p.current.Len(); len(block) > room {
		block = truncateBytes(block, room)
	}

	p.current.WriteString(block)
}

func (p *pager) pages() []string {
	if p.current.Len() > 0 {
		p.messages = append(p.messages, p.current.String())
		p.current.Reset()
	}

	return p.messages
}

// truncateBytes cuts s to at most n bytes on a rune boundary without leaving
// a dangling MarkdownV2 escape.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}

	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}

	s = s[:cut]
	if trailing := len(s) - len(strings.TrimRight(s, `\`)); trailing%2 == 1 {
		s = s[:len(s)-1]
	}

	return s
}

func truncateRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len([]rune(s)) <= n {
		return s
	}

	return string([]rune(s)[:n]) + "..."
}

// escapeLinkURL escapes the characters MarkdownV2 treats specially inside
// the (...) part of an inline link.
func escapeLinkURL(u string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(strings.TrimSpace(u))
}

func link(title, url string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = url
	}

	if strings.TrimSpace(url) == "" {
		return escape(title)
	}

	return fmt.Sprintf("[%s](%s)", escape(title), escapeLinkURL(url))
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', 2, 64)
}

// formatDigest renders the grouped article listing with progressive
// disclosure: high relevance in full, medium compact, low as one-liners.
func formatDigest(resp tools.ArticlesResponse) []string {
	if resp.Groups == nil || resp.Total == 0 {
		return []string{"📭 Nothing unread\\."}
	}

	p := newPager("📰 *Digest*\n\n", "📰 *Digest \\(continue\\)*\n\n")

	if high := resp.Groups.High; len(high) > 0 {
		p.add(fmt.Sprintf("🔥 *High relevance* \\(%d\\)\n\n", len(high)))

		for _, a := range high {
			block := fmt.Sprintf("*%s*\n%s · %s · \\#%d\n",
				link(a.Title, a.URL),
				escape(a.Source),
				escape(formatWeight(a.Score)),
				a.ID)
			if a.Summary != "" {
				block += escape(a.Summary) + "\n"
			}
			if a.HasDeepAnalysis {
				block += "🔬 _Deep analysis available_\n"
			}

			p.add(block + "\n")
		}
	}

	if medium := resp.Groups.Medium; len(medium) > 0 {
		p.add(fmt.Sprintf("📌 *Medium relevance* \\(%d\\)\n\n", len(medium)))

		for _, a := range medium {
			block := fmt.Sprintf("– %s \\(%s, \\#%d\\)\n",
				link(a.Title, a.URL),
				escape(a.Source),
				a.ID)
			if a.Summary != "" {
				block += escape(truncateRunes(a.Summary, mediumSummaryRunes)) + "\n"
			}

			p.add(block + "\n")
		}
	}

	if low := resp.Groups.Low; len(low) > 0 {
		p.add(fmt.Sprintf("🗂 *Low relevance* \\(%d\\)\n", len(low)))

		for _, a := range low {
			p.add(fmt.Sprintf("– %s \\#%d\n", escape(strings.TrimSpace(a.Title)), a.ID))
		}
	}

	return p.pages()
}

func formatSources(sources []tools.SourceView) []string {
	if len(sources) == 0 {
		return []string{"📭 No sources yet\\. Add one with /addsource name url\\."}
	}

	p := newPager("📚 *Sources*\n\n", "📚 *Sources \\(continue\\)*\n\n")

	for _, s := range sources {
		count := 0
		if s.ArticleCount != nil {
			count = *s.ArticleCount
		}

		line := fmt.Sprintf("– *%s* %s \\(%d articles, max %d\\)",
			escape(s.Name),
			link(s.URL, s.URL),
			count,
			s.MaxArticles)
		if s.DeepAnalysis {
			line += " 🔬"
		}

		p.add(line + "\n")
	}

	return p.pages()
}

func formatFeedChecks(checks []tools.FeedValidationView) string {
	var b strings.Builder

	for _, c := range checks {
		if !c.Valid {
			fmt.Fprintf(&b, "✖️ %s is not a usable feed: %s\n",
				escape(c.URL), escape(c.Error))

			continue
		}

		title := c.Title
		if title == "" {
			title = c.URL
		}

		fmt.Fprintf(&b, "✅ *%s* has %d entries\\.\nFollow it with `/addsource name %s`\n",
			escape(title), c.EntryCount, escapeCode(c.URL))
	}

	return b.String()
}

func escapeCode(s string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(s)
}

func formatFeedback(resp tools.FeedbackResponse) string {
	var b strings.Builder

	fmt.Fprintf(&b, "⭐ Rated \\#%d with %d\\.", resp.ArticleID, resp.Rating)

	if len(resp.Updates) == 0 {
		b.WriteString("\nNo interests matched this article\\.")

		return b.String()
	}

	b.WriteString("\n")
	for _, u := range resp.Updates {
		fmt.Fprintf(&b, "\n– %s: %s → %s",
			escape(u.Topic),
			escape(formatWeight(u.OldWeight)),
			escape(formatWeight(u.NewWeight)))
	}

	return b.String()
}

func formatProfile(profile tools.ProfileResponse) []string {
	if len(profile.Topics) == 0 {
		return []string{"🧭 No interests yet\\. Add one with /interest topic\\."}
	}

	p := newPager(
		fmt.Sprintf("🧭 *Profile* \\(%d configured, %d learned\\)\n\n", profile.ConfigCount, profile.LearnedCount),
		"🧭 *Profile \\(continue\\)*\n\n",
	)

	for _, t := range profile.Topics {
		p.add(fmt.Sprintf("– %s %s \\(%s, %d ratings\\)\n",
			escape(t.Topic),
			escape(formatWeight(t.Weight)),
			escape(string(t.Origin)),
			t.SampleCount))
	}

	if len(profile.EmergingTopics) > 0 {
		names := make([]string, 0, len(profile.EmergingTopics))
		for _, t := range profile.EmergingTopics {
			names = append(names, escape(t.Topic))
		}

		p.add("\n🌱 Emerging: " + strings.Join(names, ", ") + "\n")
	}

	return p.pages()
}

func formatStats(stats tools.StatsResponse) string {
	var b strings.Builder

	r, l := stats.Reading, stats.Learning

	fmt.Fprintf(&b, "📊 *Reading*\n%d articles, %d unread, %d relevant, %d sources\n",
		r.Total, r.Unread, r.Relevant, r.SourceCount)

	sources := slices.SortedFunc(maps.Keys(r.ArticlesBySource), func(x, y string) int {
		return cmp.Or(cmp.Compare(r.ArticlesBySource[y], r.ArticlesBySource[x]), cmp.Compare(x, y))
	})
	for _, s := range sources {
		fmt.Fprintf(&b, "– %s: %d\n", escape(s), r.ArticlesBySource[s])
	}

	fmt.Fprintf(&b, "\n🧠 *Learning*\n%d ratings, average %s, %d positive, %d negative\n",
		l.FeedbackCount,
		escape(formatWeight(l.AverageRating)),
		l.Positive,
		l.Negative)

	if l.AccuracySamples > 0 {
		fmt.Fprintf(&b, "Prediction error %s over %d samples, accuracy %s%%\n",
			escape(formatWeight(l.MeanAbsoluteError)),
			l.AccuracySamples,
			escape(strconv.FormatFloat(l.AccuracyRate*100, 'f', 0, 64)))
	}

	return b.String()
}
