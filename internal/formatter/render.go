package formatter

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

var (
	heading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C0392B"))
	label   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	speaker = lipgloss.NewStyle().Bold(true)
)

const barWidth = 30

// TranslationPanel renders the translated text regions of a page.
func TranslationPanel(page int, results []models.TranslationResult) string {
	var b strings.Builder
	b.WriteString(heading.Render(fmt.Sprintf("Page %d translation", page+1)))
	b.WriteString("\n")

	if len(results) == 0 {
		b.WriteString(label.Render("No text found on this page."))
		b.WriteString("\n")
		return b.String()
	}

	for _, r := range results {
		who := r.Speaker
		if !r.HasSpeaker() {
			who = models.UnknownSpeaker
		}
		b.WriteString(fmt.Sprintf("%s: %s\n", speaker.Render(who), r.TranslatedText))
		if r.OriginalText != "" {
			b.WriteString(label.Render(fmt.Sprintf("  (%s)", r.OriginalText)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// MangaTable renders the catalog as a table ordered as given.
func MangaTable(mangas []*models.Manga) string {
	rows := make([][]string, 0, len(mangas))
	for _, m := range mangas {
		rank := "-"
		if m.Rank() > 0 {
			rank = strconv.Itoa(m.Rank())
		}
		rows = append(rows, []string{
			rank,
			m.ID(),
			m.Title(),
			m.Author(),
			m.Status(),
			strconv.FormatFloat(m.Rating(), 'f', 1, 64),
			strings.Join(m.Genres(), ", "),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "ID", "Title", "Author", "Status", "Rating", "Genres").
		Rows(rows...).
		String()
}

// MangaDetail renders one title and its chapters.
func MangaDetail(m *models.Manga, chapters []*models.Chapter) string {
	var b strings.Builder
	b.WriteString(heading.Render(m.Title()))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", label.Render("Author:"), m.Author()))
	b.WriteString(fmt.Sprintf("%s %s\n", label.Render("Status:"), m.Status()))
	b.WriteString(fmt.Sprintf("%s %.1f\n", label.Render("Rating:"), m.Rating()))
	b.WriteString(fmt.Sprintf("%s %s\n", label.Render("Genres:"), strings.Join(m.Genres(), ", ")))
	if m.Description() != "" {
		b.WriteString("\n" + m.Description() + "\n")
	}

	b.WriteString("\n")
	if len(chapters) == 0 {
		b.WriteString(label.Render("No chapters yet."))
		b.WriteString("\n")
		return b.String()
	}
	for _, c := range chapters {
		b.WriteString(fmt.Sprintf("  %s  %s (%d pages)\n", c.ID(), c.Title(), c.PageCount()))
	}
	return b.String()
}

// Categories renders genre counts alphabetically.
func Categories(counts map[string]int) string {
	var b strings.Builder
	for _, genre := range slices.Sorted(maps.Keys(counts)) {
		b.WriteString(fmt.Sprintf("%-16s %d\n", genre, counts[genre]))
	}
	return b.String()
}

// Account renders the signed-in user.
func Account(u *models.User) string {
	role := "reader"
	if u.IsAuthor() {
		role = "author"
	}
	return fmt.Sprintf("%s (%s) • %s • %d tokens\n", u.Username(), u.Handle(), role, u.Tokens())
}

// DashboardTotals aggregates the stats of an author's works.
type DashboardTotals struct {
	Works   int
	Views   int
	Likes   int
	Revenue float64
}

// Totals sums views, likes and revenue over works.
func Totals(works []*models.Manga) DashboardTotals {
	t := DashboardTotals{Works: len(works)}
	for _, m := range works {
		s := m.Stats()
		t.Views += s.Views
		t.Likes += s.Likes
		t.Revenue += s.Revenue
	}
	return t
}

// Dashboard renders the author panel: totals followed by one line per work.
func Dashboard(author *models.User, works []*models.Manga) string {
	var b strings.Builder
	b.WriteString(heading.Render(fmt.Sprintf("Author dashboard • %s", author.Username())))
	b.WriteString("\n")

	t := Totals(works)
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		label.Render("Revenue"), shared.FormatCurrency(t.Revenue),
		label.Render("Views"), shared.FormatNumber(t.Views),
		label.Render("Likes"), shared.FormatNumber(t.Likes),
	))
	b.WriteString("\n")

	if len(works) == 0 {
		b.WriteString(label.Render("No published works yet. Start with `author upload`."))
		b.WriteString("\n")
		return b.String()
	}

	for _, m := range works {
		s := m.Stats()
		b.WriteString(fmt.Sprintf("  %-32s %-10s %8s views  %12s\n",
			m.Title(), m.Status(), shared.FormatNumber(s.Views), shared.FormatCurrency(s.Revenue)))
	}
	return b.String()
}

// Funding renders a crowdfunding project as of now.
func Funding(p *models.Project, now time.Time) string {
	var b strings.Builder
	b.WriteString(heading.Render(p.Title()))
	b.WriteString("\n")
	if p.Subtitle() != "" {
		b.WriteString(p.Subtitle() + "\n")
	}

	progress := p.Progress()
	b.WriteString(fmt.Sprintf("%s %.0f%%\n", ProgressBar(progress, barWidth), progress))
	b.WriteString(fmt.Sprintf("%s of %s goal\n", shared.FormatCurrency(p.CurrentAmount()), shared.FormatCurrency(p.GoalAmount())))
	b.WriteString(fmt.Sprintf("%s %d   %s %d\n", label.Render("Backers"), p.Backers(), label.Render("Days left"), p.DaysLeft(now)))

	if p.Description() != "" {
		b.WriteString("\n" + p.Description() + "\n")
	}
	if p.URL() != "" {
		b.WriteString(label.Render(p.URL()) + "\n")
	}
	return b.String()
}

// ProgressBar draws percent (0..100) as a fixed-width text bar.
func ProgressBar(percent float64, width int) string {
	percent = max(0, min(percent, 100))
	filled := int(percent / 100 * float64(width))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
