package memory

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"susu/internal/core"
)

// Fixture is the YAML layout accepted by NewFromFile.
type Fixture struct {
	Groups      []fixtureGroup      `yaml:"groups"`
	Members     []fixtureMember     `yaml:"members"`
	Assignments []fixtureAssignment `yaml:"assignments"`
}

type fixtureGroup struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Contribution    string `yaml:"contribution"`
	MaxMembers      int    `yaml:"maxMembers"`
	StartMonth      string `yaml:"startMonth"`
	EndMonth        string `yaml:"endMonth"`
	DeadlineDay     *int   `yaml:"deadlineDay"`
	LateFinePercent string `yaml:"lateFinePercent"`
	LateFineAmount  string `yaml:"lateFineAmount"`
}

type fixtureMember struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Phone         string `yaml:"phone"`
	Email         string `yaml:"email"`
	Address       string `yaml:"address"`
	BankName      string `yaml:"bankName"`
	AccountNumber string `yaml:"accountNumber"`
}

type fixtureAssignment struct {
	Group  string `yaml:"group"`
	Member string `yaml:"member"`
	Month  string `yaml:"month"`
}

// NewFromFile builds a store seeded from a YAML fixture.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	s := New()
	if err := s.Seed(context.Background(), fx, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return s, nil
}

// Seed loads a fixture, validating every entity the same way the services do.
func (s *Store) Seed(ctx context.Context, fx Fixture, now time.Time) error {
	for i, fg := range fx.Groups {
		g, err := fg.toGroup(now)
		if err != nil {
			return fmt.Errorf("groups[%d]: %w", i, err)
		}
		if err := s.CreateGroup(ctx, g); err != nil {
			return fmt.Errorf("groups[%d]: %w", i, err)
		}
	}
	for i, fm := range fx.Members {
		m := core.Member{
			ID:            orNewID(fm.ID),
			Name:          fm.Name,
			Phone:         fm.Phone,
			Email:         fm.Email,
			Address:       fm.Address,
			BankName:      fm.BankName,
			AccountNumber: fm.AccountNumber,
			RegisteredAt:  now,
			TotalReceived: decimal.Zero,
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("members[%d]: %w", i, err)
		}
		if err := s.CreateMember(ctx, m); err != nil {
			return fmt.Errorf("members[%d]: %w", i, err)
		}
	}
	for i, fa := range fx.Assignments {
		month, err := core.ParseMonth(fa.Month)
		if err != nil {
			return fmt.Errorf("assignments[%d]: %w", i, err)
		}
		g, err := s.GetGroup(ctx, fa.Group)
		if err != nil {
			return fmt.Errorf("assignments[%d]: %w", i, err)
		}
		if !g.Covers(month) {
			return fmt.Errorf("assignments[%d]: %w", i,
				core.Invalid("month", fmt.Sprintf("%s is outside %s..%s", month, g.StartMonth, g.EndMonth)))
		}
		a := core.Assignment{
			ID:        uuid.NewString(),
			GroupID:   fa.Group,
			MemberID:  fa.Member,
			Month:     month,
			CreatedAt: now,
		}
		if err := s.CreateAssignment(ctx, a); err != nil {
			return fmt.Errorf("assignments[%d]: %w", i, err)
		}
	}
	return nil
}

func (fg fixtureGroup) toGroup(now time.Time) (core.Group, error) {
	g := core.Group{
		ID:          orNewID(fg.ID),
		Name:        fg.Name,
		Description: fg.Description,
		MaxMembers:  fg.MaxMembers,
		DeadlineDay: fg.DeadlineDay,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var err error
	if g.Contribution, err = core.ParseAmount(fg.Contribution); err != nil {
		return g, err
	}
	if g.StartMonth, err = core.ParseMonth(fg.StartMonth); err != nil {
		return g, err
	}
	if g.EndMonth, err = core.ParseMonth(fg.EndMonth); err != nil {
		return g, err
	}
	if fg.LateFinePercent != "" {
		d, err := decimal.NewFromString(fg.LateFinePercent)
		if err != nil {
			return g, core.Invalid("lateFinePercent", "is not a number")
		}
		g.LateFinePercent = decimal.NewNullDecimal(d)
	}
	if fg.LateFineAmount != "" {
		d, err := decimal.NewFromString(fg.LateFineAmount)
		if err != nil {
			return g, core.Invalid("lateFineAmount", "is not a number")
		}
		g.LateFineAmount = decimal.NewNullDecimal(d)
	}
	return g, g.Validate()
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
