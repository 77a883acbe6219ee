// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/carterperez-dev/recipes-api/internal/auth"
	"github.com/carterperez-dev/recipes-api/internal/config"
	"github.com/carterperez-dev/recipes-api/internal/core"
	"github.com/carterperez-dev/recipes-api/internal/premium"
	"github.com/carterperez-dev/recipes-api/internal/user"
)

type options struct {
	configPath string
	force      bool
	email      string
	name       string
	role       string
	pkgName    string
	productID  string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "config.yaml", "path to config file")
	flag.BoolVar(&opts.force, "force", false, "overwrite existing key files")
	flag.StringVar(&opts.email, "email", "", "create a dev user and print an access token for it")
	flag.StringVar(&opts.name, "name", "Dev User", "display name for -email")
	flag.StringVar(&opts.role, "role", user.RoleUser, "role for -email (user or admin)")
	flag.StringVar(&opts.pkgName, "package", "", "create a premium package with this name")
	flag.StringVar(&opts.productID, "product", "", "store product id for -package")
	flag.Parse()

	//nolint:errcheck // .env is optional outside local development
	_ = godotenv.Load()

	if err := run(context.Background(), opts); err != nil {
		slog.Error("keygen failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	if _, err := os.Stat(opts.configPath); err != nil {
		opts.configPath = ""
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	if err := ensureKeys(cfg.JWT, opts.force); err != nil {
		return err
	}

	if opts.email == "" && opts.pkgName == "" {
		return nil
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // process exits right after

	if err := core.Migrate(ctx, db.DB); err != nil {
		return err
	}

	if opts.pkgName != "" {
		if err := seedPackage(ctx, db, opts); err != nil {
			return err
		}
	}

	if opts.email != "" {
		return seedUser(ctx, db, cfg.JWT, opts)
	}

	return nil
}

func ensureKeys(cfg config.JWTConfig, force bool) error {
	_, err := os.Stat(cfg.PrivateKeyPath)
	switch {
	case err == nil && !force:
		slog.Info("key pair already present", "private", cfg.PrivateKeyPath)
		return nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat private key: %w", err)
	}

	for _, path := range []string{cfg.PrivateKeyPath, cfg.PublicKeyPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
	}

	if err := auth.GenerateKeyPair(cfg.PrivateKeyPath, cfg.PublicKeyPath); err != nil {
		return err
	}

	slog.Info("generated ES256 key pair",
		"private", cfg.PrivateKeyPath,
		"public", cfg.PublicKeyPath,
	)
	return nil
}

func seedPackage(ctx context.Context, db *core.Database, opts options) error {
	svc := premium.NewService(premium.NewRepository(db.DB), nil, 0, slog.Default())

	pkg := &premium.Package{
		ID:           uuid.New().String(),
		Name:         opts.pkgName,
		PriceMonthly: 4.99,
		PriceYearly:  49.99,
		TrialDays:    7,
		IsActive:     true,
	}
	if opts.productID != "" {
		pkg.StoreProductID = &opts.productID
	}

	if err := svc.Create(ctx, pkg); err != nil {
		return err
	}

	fmt.Printf("package %s %s\n", pkg.ID, pkg.Name)
	return nil
}

func seedUser(
	ctx context.Context,
	db *core.Database,
	jwtCfg config.JWTConfig,
	opts options,
) error {
	svc := user.NewService(user.NewRepository(db.DB))

	u, err := svc.Create(ctx, opts.email, opts.name, opts.role)
	if err != nil {
		return err
	}

	manager, err := auth.NewJWTManager(jwtCfg)
	if err != nil {
		return err
	}

	token, err := manager.CreateAccessToken(auth.AccessTokenClaims{
		UserID:       u.ID,
		Role:         u.Role,
		TokenVersion: u.TokenVersion,
	})
	if err != nil {
		return err
	}

	fmt.Printf("user %s %s\n", u.ID, u.Email)
	fmt.Println(token)
	return nil
}
