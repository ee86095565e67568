// main.go - Admin control tool for sitepulse
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"
	"gorm.io/gorm"

	"sitepulse/internal"
	"sitepulse/internal/auth"
	"sitepulse/internal/config"
	"sitepulse/internal/seeder"
	"sitepulse/internal/users"
	"sitepulse/internal/websites"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	minPasswordLength      = 8
)

// Command is one spctl subcommand
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

var stdin = bufio.NewReader(os.Stdin)

var commands = []Command{
	&CreateAdminUserCommand{},
	&ChangeAdminPasswordCommand{},
	&CreateWebsiteCommand{},
	&ListWebsitesCommand{},
	&MigrateCommand{},
	&SeedCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()
	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	var app *internal.Application
	if _, isHelp := cmd.(*HelpCommand); !isHelp {
		var err error
		app, err = internal.NewApp()
		if err != nil {
			log.Fatalf("Failed to initialize app: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}()
	}

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}
	log.Printf("Command %s completed successfully", cmd.Name())
}

// CreateAdminUserCommand creates an admin account
type CreateAdminUserCommand struct{}

func (c *CreateAdminUserCommand) Name() string { return "create-admin-user" }
func (c *CreateAdminUserCommand) Description() string {
	return "Creates an admin user: [username] [password]"
}

func (c *CreateAdminUserCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	username := users.DefaultUsername
	if len(args) >= 1 {
		username = args[0]
	}

	password, err := passwordArg(args, 1)
	if err != nil {
		return err
	}

	user, err := users.CreateAdminUser(app.DBManager.GetConnection(), username, password)
	if err != nil {
		if errors.Is(err, users.ErrUserExists) {
			log.Printf("User %s already exists", users.NormalizeUsername(username))
			return nil
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("Created user %s\n", user.Username)
	return nil
}

// ChangeAdminPasswordCommand replaces a user's password and signs out all their sessions
type ChangeAdminPasswordCommand struct{}

func (c *ChangeAdminPasswordCommand) Name() string { return "change-admin-password" }
func (c *ChangeAdminPasswordCommand) Description() string {
	return "Changes the password of an existing user: [username] [password]"
}

func (c *ChangeAdminPasswordCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	db := app.DBManager.GetConnection()

	username := users.DefaultUsername
	if len(args) >= 1 {
		username = args[0]
	}
	user, err := users.FindByUsername(db, users.NormalizeUsername(username))
	if err != nil {
		return fmt.Errorf("user lookup failed: %w", err)
	}

	password, err := passwordArg(args, 1)
	if err != nil {
		return err
	}

	if err := users.ChangePassword(db, user.Username, password); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	cfg := config.GetConfig()
	store := auth.NewSessionStore(db, slog.Default(), time.Duration(cfg.GetLoginSessionTimeout())*time.Second)
	if err := store.RevokeAllForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("password updated but sessions could not be revoked: %w", err)
	}

	fmt.Println("Password updated successfully")
	return nil
}

// CreateWebsiteCommand registers a website and prints its snippet
type CreateWebsiteCommand struct{}

func (c *CreateWebsiteCommand) Name() string { return "create-website" }
func (c *CreateWebsiteCommand) Description() string {
	return "Registers a website: [--owner username] <url> <name>"
}

func (c *CreateWebsiteCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	owner := fs.String("owner", users.DefaultUsername, "owning username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: %s [--owner username] <url> <name>", c.Name())
	}

	db := app.DBManager.GetConnection()
	user, err := users.FindByUsername(db, users.NormalizeUsername(*owner))
	if err != nil {
		return fmt.Errorf("owner lookup failed: %w", err)
	}

	website, err := websites.CreateWebsite(db, slog.Default(), websites.CreateWebsiteInput{
		URL:    fs.Arg(0),
		Name:   strings.Join(fs.Args()[1:], " "),
		UserID: user.ID,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Website %d created\n", website.ID)
	fmt.Printf("Tracking code: %s\n", website.TrackingCode)
	fmt.Printf("Snippet: %s\n", website.Snippet(publicURL()))
	return nil
}

// ListWebsitesCommand prints every website with its tracking code
type ListWebsitesCommand struct{}

func (c *ListWebsitesCommand) Name() string        { return "list-websites" }
func (c *ListWebsitesCommand) Description() string { return "Lists all websites" }

func (c *ListWebsitesCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	list, err := websites.GetAllWebsites(app.DBManager.GetConnection())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No websites yet. Use create-website to add one.")
		return nil
	}
	for _, website := range list {
		fmt.Printf("%d\t%s\t%s\t%s\n", website.ID, website.TrackingCode, website.URL, website.Name)
	}
	return nil
}

// StatusCommand prints database and row statistics
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	db := app.DBManager.GetConnection()

	log.Println("System Status:")
	log.Println("- Database: Connected")
	for _, table := range []string{"users", "websites", "visitors", "sessions", "page_views", "login_sessions"} {
		count, err := countRows(db, table)
		if err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		log.Printf("- %s: %d", table, count)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	stats := sqlDB.Stats()
	log.Printf("- Max Open Connections: %d", stats.MaxOpenConnections)
	log.Printf("- Open Connections: %d", stats.OpenConnections)
	log.Printf("- In Use: %d", stats.InUse)
	log.Printf("- Idle: %d", stats.Idle)
	return nil
}

// HelpCommand prints usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// SeedCommand populates the database with demo traffic
type SeedCommand struct{}

func (c *SeedCommand) Name() string { return "seed" }
func (c *SeedCommand) Description() string {
	return "Seeds demo traffic: [--visits n] [--code tracking_code]"
}

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	visits := fs.Int("visits", 500, "visits to generate per website")
	code := fs.String("code", "", "seed only the website with this tracking code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	se := seeder.NewSeeder(app.DBManager, slog.Default(), *visits)
	if *code != "" {
		return se.SeedTrackingCode(ctx, *code)
	}
	return se.Run(ctx)
}

// Helper functions

func countRows(db *gorm.DB, table string) (int64, error) {
	var count int64
	err := db.Table(table).Count(&count).Error
	return count, err
}

func publicURL() string {
	if url := config.GetConfig().PublicURL; url != "" {
		return url
	}
	return "http://localhost:" + config.GetConfig().GetPort()
}

// passwordArg returns args[idx] or prompts for a confirmed password
func passwordArg(args []string, idx int) (string, error) {
	if len(args) > idx {
		if len(args[idx]) < minPasswordLength {
			return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
		}
		return args[idx], nil
	}

	for {
		password, err := readSecret(fmt.Sprintf("Enter password (minimum %d characters): ", minPasswordLength))
		if err != nil {
			return "", err
		}
		if len(password) < minPasswordLength {
			fmt.Printf("Error: password must be at least %d characters\n", minPasswordLength)
			continue
		}

		confirm, err := readSecret("Confirm password: ")
		if err != nil {
			return "", err
		}
		if password != confirm {
			fmt.Println("Error: Passwords do not match. Please try again.")
			continue
		}
		return password, nil
	}
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: spctl [command] [args...]")
	fmt.Println("Available commands:")
	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
