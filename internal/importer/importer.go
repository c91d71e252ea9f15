// Package importer loads markdown decks into the question store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/conorfennell/flashback/internal/domain"
	"github.com/conorfennell/flashback/internal/gitsource"
	"github.com/conorfennell/flashback/internal/knol"
	"github.com/conorfennell/flashback/internal/parser"
)

// Store is the subset of the repository the importer needs to resolve
// categories and recognise questions it has already imported.
type Store interface {
	FindCategoryByName(ctx context.Context, name string) (domain.Category, error)
	SaveCategory(ctx context.Context, c domain.Category) (int64, error)
	FindQuestionByHash(ctx context.Context, hash string) (domain.Question, error)
}

// Adder appends a new question to the end of its category.
type Adder interface {
	AddImported(ctx context.Context, categoryID int64, title, answer, hash string) (domain.Question, error)
}

// Result summarises an import run.
type Result struct {
	Parsed   int
	Inserted int
	Skipped  int
	Errors   []error
}

// Importer reads decks and inserts questions it has not seen before.
type Importer struct {
	store  Store
	adder  Adder
	logger *slog.Logger
}

// New creates an Importer.
func New(store Store, adder Adder, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, adder: adder, logger: logger}
}

// ImportGit clones or pulls the deck repository at repoURL under cacheDir
// and imports it.
func (im *Importer) ImportGit(ctx context.Context, repoURL, cacheDir string) (Result, error) {
	localPath, err := gitURLToLocalPath(cacheDir, repoURL)
	if err != nil {
		return Result{}, err
	}
	if err := gitsource.Sync(ctx, repoURL, localPath, im.logger); err != nil {
		return Result{}, err
	}
	return im.ImportDir(ctx, localPath)
}

// ImportDir walks dir for .md files and inserts every card whose content hash
// is not stored yet. Per-card failures are collected in the Result.
func (im *Importer) ImportDir(ctx context.Context, dir string) (Result, error) {
	var res Result
	categories := make(map[string]int64)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		cards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			res.Errors = append(res.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		for _, card := range cards {
			res.Parsed++
			card.Hash = knol.Hash(card)
			inserted, err := im.importCard(ctx, card, categories)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Errorf("importing %s from %s: %w", card.Hash, path, err))
				continue
			}
			if inserted {
				res.Inserted++
			} else {
				res.Skipped++
			}
		}
		return nil
	})
	if walkErr != nil {
		return res, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	im.logger.Info("import complete",
		"path", dir,
		"parsed_cards", res.Parsed,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
	)
	return res, nil
}

func (im *Importer) importCard(ctx context.Context, card domain.Card, categories map[string]int64) (bool, error) {
	_, err := im.store.FindQuestionByHash(ctx, card.Hash)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	categoryID, err := im.category(ctx, card.Category, categories)
	if err != nil {
		return false, err
	}
	q, err := im.adder.AddImported(ctx, categoryID, card.Question, card.Answer, card.Hash)
	if err != nil {
		return false, err
	}
	im.logger.Debug("new question imported", "id", q.ID, "category", card.Category, "hash", card.Hash)
	return true, nil
}

// category resolves a category name to its id, creating it (active) when
// missing.
func (im *Importer) category(ctx context.Context, name string, cache map[string]int64) (int64, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}
	c, err := im.store.FindCategoryByName(ctx, name)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		c = domain.Category{Name: name, Active: true}
		if c.ID, err = im.store.SaveCategory(ctx, c); err != nil {
			return 0, err
		}
		im.logger.Info("category created", "name", name, "id", c.ID)
	default:
		return 0, err
	}
	cache[name] = c.ID
	return c.ID, nil
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// scp-like syntax: git@host:owner/repo.git
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}

// IsGitURL reports whether source looks like a git remote rather than a
// local directory.
func IsGitURL(source string) bool {
	return strings.HasSuffix(source, ".git") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "http://")
}
