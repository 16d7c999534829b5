// User manager for go-redsocial accounts
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/go-while/go-redsocial/internal/auth"
	"github.com/go-while/go-redsocial/internal/config"
	"github.com/go-while/go-redsocial/internal/database"
	"github.com/go-while/go-redsocial/internal/logging"
	"github.com/go-while/go-redsocial/internal/models"
)

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion
	log.Printf("go-redsocial User Manager (version: %s)", config.AppVersion)
	var (
		createUser = flag.Bool("create", false, "Create a new account")
		listUsers  = flag.Bool("list", false, "List accounts, one page at a time")
		page       = flag.Int("page", 1, "Page to show with -list")
		email      = flag.String("email", "", "Email for account creation")
		display    = flag.String("display", "", "Display name for account creation")
		envFile    = flag.String("env", ".env", "dotenv file with REDSOCIAL_* settings (optional)")
		secret     = flag.String("secret", "", "server secret (overrides REDSOCIAL_SECRET)")
		dbPath     = flag.String("db", "", "path to the SQLite database (default: "+config.DefaultMainDB+")")
		debug      = flag.Bool("debug", false, "development logging")
	)
	flag.Parse()

	if !*createUser && !*listUsers {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -create -email juan@example.com -display \"Juan\"\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -list -page 2\n", os.Args[0])
		os.Exit(1)
	}

	mainConfig, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *secret != "" {
		mainConfig.Web.Secret = *secret
	}
	if *dbPath != "" {
		mainConfig.Database.MainDB = *dbPath
	}

	logger := logging.Must(*debug || mainConfig.Web.Debug)
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	db, err := database.OpenDatabase(ctx, database.DefaultDBConfig(mainConfig.Database.MainDB), logger)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	switch {
	case *createUser:
		if *email == "" {
			log.Fatal("Email is required for account creation")
		}
		hasher, err := auth.NewHasher(mainConfig.Web.Secret)
		if err != nil {
			log.Fatalf("A server secret is required for account creation: %v", err)
		}
		if err := createAccount(ctx, db, hasher, *email, *display); err != nil {
			log.Fatalf("Failed to create account: %v", err)
		}

	case *listUsers:
		if err := listAccounts(ctx, db, *page); err != nil {
			log.Fatalf("Failed to list accounts: %v", err)
		}
	}
}

func createAccount(ctx context.Context, db *database.Database, hasher *auth.Hasher, email, displayName string) error {
	email = models.NormalizeText(email)
	displayName = models.NormalizeText(displayName)

	existing, err := db.FindAccounts(ctx, models.Criteria{Email: email})
	if err != nil {
		return fmt.Errorf("failed to look up email: %w", err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("email '%s' already exists", email)
	}

	fmt.Print("Enter password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	confirmPassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read password confirmation: %w", err)
	}
	fmt.Println()

	if string(password) != string(confirmPassword) {
		return fmt.Errorf("passwords do not match")
	}

	// Set display name to the email if not provided
	if displayName == "" {
		displayName = email
	}

	account := &models.Account{
		Email:          email,
		DisplayName:    displayName,
		PasswordDigest: hasher.Digest(string(password)),
	}
	id, err := db.InsertAccount(ctx, account)
	if errors.Is(err, database.ErrDuplicateEmail) {
		return fmt.Errorf("email '%s' already exists", email)
	}
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	fmt.Printf("✅ Account '%s' created successfully (id %d)\n", email, id)
	return nil
}

func listAccounts(ctx context.Context, db *database.Database, page int) error {
	if page < 1 {
		page = 1
	}
	accounts, total, err := db.FindAccountsPage(ctx, page)
	if err != nil {
		return fmt.Errorf("failed to get accounts: %w", err)
	}

	if total == 0 {
		fmt.Println("No accounts found")
		return nil
	}

	fmt.Printf("Found %d accounts, page %d of %d:\n\n", total, page, models.LastPage(total, models.AccountsPerPage))
	fmt.Printf("%-6s %-30s %-20s %s\n", "ID", "Email", "Display Name", "Created")
	for _, a := range accounts {
		fmt.Printf("%-6d %-30s %-20s %s\n", a.ID, a.Email, a.DisplayName, a.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
