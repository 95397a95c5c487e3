package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	"booknest/internal/model"
	"booknest/internal/repository"
)

// SeedBook is one entry of the seed file.
type SeedBook struct {
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Description   string  `json:"description"`
	Stock         int     `json:"stock"`
	CoverImageURL *string `json:"cover_image_url"`
}

// SeedResult counts what a seed run did.
type SeedResult struct {
	Created int
	Updated int
	Skipped int
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// loadBooks reads the seed JSON from a URL or a file path.
func loadBooks(ctx context.Context, source string) ([]SeedBook, error) {
	var body io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", source, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: status code %d", source, resp.StatusCode)
		}
		body = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", source, err)
		}
		body = f
	}
	defer body.Close()

	var books []SeedBook
	if err := json.NewDecoder(body).Decode(&books); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return books, nil
}

// seedBooks creates new books and overwrites description, stock and cover
// of books that already exist with the same title and author.
func seedBooks(ctx context.Context, repo repository.BookRepository, entries []SeedBook) (SeedResult, error) {
	var result SeedResult
	for i, entry := range entries {
		entry.Title = strings.TrimSpace(entry.Title)
		entry.Author = strings.TrimSpace(entry.Author)
		if entry.Title == "" || entry.Author == "" || entry.Stock < 0 {
			log.Printf("Skipping entry %d: title and author are required and stock must not be negative", i)
			result.Skipped++
			continue
		}

		existing, err := repo.FindByTitleAndAuthor(ctx, entry.Title, entry.Author)
		if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return result, fmt.Errorf("look up %q: %w", entry.Title, err)
		}

		if existing != nil {
			existing.Description = entry.Description
			existing.Stock = entry.Stock
			if entry.CoverImageURL != nil {
				existing.CoverImageURL = entry.CoverImageURL
			}
			if err := repo.Update(ctx, existing); err != nil {
				return result, fmt.Errorf("update %q: %w", entry.Title, err)
			}
			result.Updated++
			continue
		}

		book := &model.Book{
			Title:         entry.Title,
			Author:        entry.Author,
			Description:   entry.Description,
			Stock:         entry.Stock,
			CoverImageURL: entry.CoverImageURL,
		}
		if err := repo.Create(ctx, book); err != nil {
			return result, fmt.Errorf("create %q: %w", entry.Title, err)
		}
		result.Created++
	}
	return result, nil
}
