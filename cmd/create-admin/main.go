// Command create-admin creates an administrator account, or promotes an
// existing user, since signup never grants admin rights.
//
//	go run ./cmd/create-admin -email admin@example.com -first Ada -last Admin
//
// It reads the same environment as the server; the password comes from
// ADMIN_PASSWORD.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/config"
	"github.com/aithera/therapy-server-go/internal/database"
	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/repository"
	"github.com/aithera/therapy-server-go/internal/service"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	email := flag.String("email", "", "admin email")
	first := flag.String("first", "Admin", "first name")
	last := flag.String("last", "User", "last name")
	flag.Parse()

	if *email == "" {
		fmt.Fprintf(os.Stderr, "Usage: create-admin -email <email> [-first name] [-last name]\n")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	userRepo := repository.NewUserRepository(db.DB)
	users := service.NewUserService(userRepo)

	existing, err := userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(*email)))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to look up user")
	}

	if existing != nil {
		admin := true
		if _, err := users.Update(ctx, existing.ID, service.UpdateUserInput{IsAdmin: &admin}); err != nil {
			log.Fatal().Err(err).Msg("failed to promote user")
		}
		log.Info().Int64("userId", existing.ID).Msg("existing user promoted to admin")
		return
	}

	user, err := users.Create(ctx, service.CreateUserInput{
		FirstName: *first,
		LastName:  *last,
		Email:     *email,
		Password:  os.Getenv("ADMIN_PASSWORD"),
		IsAdmin:   true,
	})
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok {
			log.Fatal().Str("code", string(appErr.Code)).Interface("details", appErr.Details).Msg(appErr.Message)
		}
		log.Fatal().Err(err).Msg("failed to create admin")
	}

	log.Info().Int64("userId", user.ID).Str("email", user.Email).Msg("admin created")
}
