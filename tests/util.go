package testutil

import (
	"context"
	"net/mail"
	"regexp"
	"testing"
	"time"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/roster"
)

// NewConfig returns a self-contained test configuration; nothing is read from
// the environment.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:           "Odin",
		Env:               "TEST",
		Build:             "test",
		Debug:             false,
		TestMode:          true,
		SecretKey:         "test-secret",
		FrontendBaseURL:   "http://localhost:3000",
		DefaultFromEmail:  mail.Address{Name: "Odin", Address: "noreply@localhost"},
		StudentEmailRegex: regexp.MustCompile(`^a[0-9]+@`),
		Server: core.ServerConfig{
			Host:                      "localhost",
			Addr:                      ":0",
			ShutdownTimeout:           5 * time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Credits: core.CreditsConfig{
			TechSessionValue: 1.0,
			VocDayValue:      0.5,
			VocFixedValue:    1.0,
		},
	}
}

func CreateUser(
	t *testing.T,
	repo roster.Repository,
	name, email, role string,
	isActive bool,
	createdAt ...time.Time,
) roster.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := roster.User{
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)

	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateSection(t *testing.T, repo roster.Repository, name string, studentIDs ...string) roster.Section {
	t.Helper()

	now := time.Now().UTC()
	sec, err := repo.CreateSection(context.Background(), roster.Section{
		Name:       name,
		StudentIDs: studentIDs,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateSection() failed: %v", err)
	}
	return sec
}

func CreateCurricularUnit(t *testing.T, repo roster.Repository, name string) roster.CurricularUnit {
	t.Helper()

	now := time.Now().UTC()
	unit, err := repo.CreateCurricularUnit(context.Background(), roster.CurricularUnit{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCurricularUnit() failed: %v", err)
	}
	return unit
}
