package models

import (
	"fmt"
	"strings"
	"time"
)

// Project is a crowdfunding campaign for an upcoming work.
type Project struct {
	base
	title         string
	subtitle      string
	description   string
	imageURL      string
	url           string
	currentAmount float64
	goalAmount    float64
	backers       int
	deadline      time.Time
}

// NewProject creates a [Project].
func NewProject(sequence int, title string, goal float64, deadline time.Time) *Project {
	return &Project{
		base:       newBase(sequence),
		title:      title,
		goalAmount: goal,
		deadline:   deadline,
	}
}

func (p *Project) Title() string          { return p.title }
func (p *Project) Subtitle() string       { return p.subtitle }
func (p *Project) Description() string    { return p.description }
func (p *Project) ImageURL() string       { return p.imageURL }
func (p *Project) URL() string            { return p.url }
func (p *Project) CurrentAmount() float64 { return p.currentAmount }
func (p *Project) GoalAmount() float64    { return p.goalAmount }
func (p *Project) Backers() int           { return p.backers }
func (p *Project) Deadline() time.Time    { return p.deadline }

func (p *Project) SetSubtitle(s string)          { p.subtitle = s }
func (p *Project) SetDescription(s string)       { p.description = s }
func (p *Project) SetImageURL(s string)          { p.imageURL = s }
func (p *Project) SetURL(s string)               { p.url = s }
func (p *Project) SetCurrentAmount(a float64)    { p.currentAmount = a }
func (p *Project) SetBackers(n int)              { p.backers = n }

// Progress returns the funded percentage, capped at 100.
func (p *Project) Progress() float64 {
	if p.goalAmount <= 0 {
		return 0
	}
	return min(p.currentAmount/p.goalAmount*100, 100)
}

// DaysLeft returns the whole days remaining until the deadline, never negative.
func (p *Project) DaysLeft(now time.Time) int {
	d := p.deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// Validate checks the title and funding goal.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.title) == "" {
		return fmt.Errorf("title is required")
	}
	if p.goalAmount <= 0 {
		return fmt.Errorf("goal amount must be positive")
	}
	return nil
}
