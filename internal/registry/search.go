package registry

import (
	"context"
	"strings"
	"sync"

	"folio/internal/models"
)

const searchPageSize = 100

// SearchSeries fans a series search out across every registered server. For
// each server it lists all libraries, then one page of series per library,
// and filters by case-insensitive substring match on the series name. A
// failing server is logged and skipped; it never aborts the search across the
// remaining servers.
func (r *Registry) SearchSeries(ctx context.Context, query string) []models.SearchMatch {
	entries := r.AllClients()
	if len(entries) == 0 {
		return nil
	}

	needle := strings.ToLower(strings.TrimSpace(query))

	perServer := make([][]models.SearchMatch, len(entries))
	var wg sync.WaitGroup

	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry ClientEntry) {
			defer wg.Done()

			matches, err := r.searchServer(ctx, entry, needle)
			if err != nil {
				r.logger.Warn().
					Str("server_id", entry.ServerID).
					Str("server_name", entry.Server.Name).
					Str("error", err.Error()).
					Msg("Server search failed, skipping")
				return
			}
			perServer[i] = matches
		}(i, entry)
	}
	wg.Wait()

	var results []models.SearchMatch
	for _, matches := range perServer {
		results = append(results, matches...)
	}
	return results
}

// searchServer searches every library of a single server
func (r *Registry) searchServer(ctx context.Context, entry ClientEntry, needle string) ([]models.SearchMatch, error) {
	libraries, err := entry.Client.Libraries(ctx)
	if err != nil {
		return nil, err
	}

	var matches []models.SearchMatch
	for _, library := range libraries {
		series, err := entry.Client.Series(ctx, library.Id, 0, searchPageSize)
		if err != nil {
			return nil, err
		}

		for _, s := range series {
			if !strings.Contains(strings.ToLower(s.Name), needle) {
				continue
			}
			matches = append(matches, models.SearchMatch{
				Series:      s,
				ServerID:    entry.ServerID,
				ServerName:  entry.Server.Name,
				ServerURL:   entry.Server.URL,
				LibraryID:   library.Id,
				LibraryName: library.Name,
			})
		}
	}
	return matches, nil
}

// ServersWithSeries returns the distinct server ids holding at least one
// series matching the query, in registration order.
func (r *Registry) ServersWithSeries(ctx context.Context, query string) []string {
	matches := r.SearchSeries(ctx, query)

	seen := make(map[string]bool)
	var ids []string
	for _, match := range matches {
		if seen[match.ServerID] {
			continue
		}
		seen[match.ServerID] = true
		ids = append(ids, match.ServerID)
	}
	return ids
}
