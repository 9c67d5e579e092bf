// Package main creates an admin account in the board database.
//
// Usage:
//
//	go run ./cmd/createadmin
//
// The username and password are read from stdin. Connection settings come
// from the same environment as the server.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/townboard/backend/config"
	"github.com/townboard/backend/internal/auth"
	"github.com/townboard/backend/pkg/database"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Store.Driver != config.StorePostgres {
		logger.Fatal("createadmin needs STORE_DRIVER=postgres; use ADMIN_BOOTSTRAP_USERNAME with the memory store")
	}

	in := bufio.NewReader(os.Stdin)
	username, err := prompt(in, "Username: ")
	if err != nil {
		logger.Fatal("read username", zap.Error(err))
	}
	password, err := prompt(in, "Password: ")
	if err != nil {
		logger.Fatal("read password", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), 2, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	admin, err := auth.CreateAdmin(ctx, auth.NewRepository(pool), username, password)
	switch {
	case errors.Is(err, auth.ErrAdminExists):
		fmt.Fprintf(os.Stderr, "admin %q already exists\n", username)
		os.Exit(1)
	case errors.Is(err, auth.ErrWeakPassword):
		fmt.Fprintf(os.Stderr, "password must be at least %d characters\n", auth.MinPasswordLength)
		os.Exit(1)
	case err != nil:
		logger.Fatal("create admin", zap.Error(err))
	}
	fmt.Printf("admin %s created (%s)\n", admin.Username, admin.ID)
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("value required")
	}
	return line, nil
}
