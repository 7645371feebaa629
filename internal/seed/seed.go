// Package seed loads the demo catalog, accounts and reviews into an empty or
// partially seeded database. Running it twice is harmless.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/validation"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the seed file layout.
type Catalog struct {
	Categories []Category `yaml:"categories"`
	Products   []Product  `yaml:"products"`
	Users      []User     `yaml:"users"`
	Reviews    []Review   `yaml:"reviews"`
}

type Category struct {
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
}

type Product struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"` // slug
	Price       float64  `yaml:"price"`
	SalePrice   *float64 `yaml:"sale_price"`
	Gender      string   `yaml:"gender"`
	Sizes       []string `yaml:"sizes"`
	Colors      []string `yaml:"colors"`
	Stock       int      `yaml:"stock"`
	Image       string   `yaml:"image"`
	Featured    bool     `yaml:"featured"`
}

type User struct {
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	Phone     string `yaml:"phone"`
	Admin     bool   `yaml:"admin"`
}

type Review struct {
	Product string `yaml:"product"`
	Email   string `yaml:"email"`
	Rating  int    `yaml:"rating"`
	Comment string `yaml:"comment"`
}

// Result counts what a run inserted.
type Result struct {
	Categories int
	Products   int
	Users      int
	Reviews    int
}

// Default returns the embedded demo catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes a seed file and fills in missing slugs.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i := range c.Categories {
		if c.Categories[i].Slug == "" {
			c.Categories[i].Slug = validation.Slug(c.Categories[i].Name)
		}
	}
	return &c, nil
}

// Run inserts every entry of c that is not already present. Categories are
// matched by slug, products by name and users by email; reviews are only
// added for products inserted by this run.
func Run(ctx context.Context, s *store.Store, c *Catalog, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var res Result

	categoryIDs := make(map[string]int64, len(c.Categories))
	for _, cat := range c.Categories {
		existing, err := s.Categories.GetBySlug(ctx, cat.Slug)
		if err != nil {
			return res, err
		}
		if existing != nil {
			categoryIDs[cat.Slug] = existing.ID
			continue
		}
		id, err := s.Categories.Create(ctx, cat.Name, cat.Slug, cat.Description)
		if err != nil {
			return res, fmt.Errorf("failed to seed category %q: %w", cat.Name, err)
		}
		categoryIDs[cat.Slug] = id
		res.Categories++
	}

	newProducts := make(map[string]int64)
	for _, p := range c.Products {
		catID, ok := categoryIDs[p.Category]
		if !ok {
			return res, fmt.Errorf("product %q references unknown category %q", p.Name, p.Category)
		}
		existing, err := s.Products.FindByName(ctx, p.Name)
		if err != nil {
			return res, err
		}
		if existing != nil {
			continue
		}

		in := store.ProductInput{
			Name:        p.Name,
			Description: p.Description,
			Price:       store.MoneyFromFloat(p.Price),
			CategoryID:  catID,
			Gender:      p.Gender,
			Sizes:       p.Sizes,
			Colors:      p.Colors,
			Stock:       p.Stock,
			Image:       p.Image,
			Featured:    p.Featured,
			Active:      true,
		}
		if in.Gender == "" {
			in.Gender = store.GenderUnisex
		}
		if p.SalePrice != nil {
			sale := store.MoneyFromFloat(*p.SalePrice)
			in.SalePrice = &sale
		}
		id, err := s.Products.Create(ctx, in)
		if err != nil {
			return res, fmt.Errorf("failed to seed product %q: %w", p.Name, err)
		}
		newProducts[p.Name] = id
		res.Products++
	}

	userIDs := make(map[string]int64, len(c.Users))
	for _, u := range c.Users {
		email := store.NormalizeEmail(u.Email)
		created, err := s.Users.Create(ctx, store.NewUser{
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     email,
			Password:  u.Password,
			Phone:     u.Phone,
		})
		switch {
		case errors.Is(err, store.ErrEmailTaken):
			existing, err := s.Users.GetByEmail(ctx, email)
			if err != nil {
				return res, err
			}
			if existing != nil {
				userIDs[email] = existing.ID
			}
			continue
		case err != nil:
			return res, fmt.Errorf("failed to seed user %q: %w", email, err)
		}

		if u.Admin {
			if err := s.Users.SetAdmin(ctx, created.ID, true); err != nil {
				return res, err
			}
		}
		userIDs[email] = created.ID
		res.Users++
	}

	for _, r := range c.Reviews {
		productID, ok := newProducts[r.Product]
		if !ok {
			continue
		}
		userID, ok := userIDs[store.NormalizeEmail(r.Email)]
		if !ok {
			return res, fmt.Errorf("review for %q references unknown user %q", r.Product, r.Email)
		}
		if _, err := s.Reviews.Create(ctx, productID, userID, r.Rating, r.Comment); err != nil {
			return res, fmt.Errorf("failed to seed review: %w", err)
		}
		res.Reviews++
	}

	logger.Info("seed complete",
		"categories", res.Categories,
		"products", res.Products,
		"users", res.Users,
		"reviews", res.Reviews,
	)
	return res, nil
}
