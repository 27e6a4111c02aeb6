package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/qwc/lisenssit/internal/database"
)

// SearchIndex wraps a bleve index for full-text search over scanned
// dependencies and their license texts.
type SearchIndex struct {
	index bleve.Index
	path  string
}

// indexDoc is the document structure stored in the bleve index.
type indexDoc struct {
	ProjectSlug string `json:"project_slug"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	License     string `json:"license"`
	LicenseText string `json:"license_text"`
	ProjectID   int64  `json:"project_id"`
	ScanID      int64  `json:"scan_id"`
}

// SearchQuery describes a dependency search request.
type SearchQuery struct {
	Query       string
	ProjectSlug string // empty = all projects
	License     string // empty = any license
	Limit       int
	Offset      int
}

// SearchResult is a single search hit.
type SearchResult struct {
	ProjectSlug string `json:"project_slug"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	License     string `json:"license"`
	Snippet     string `json:"snippet"`
	ScanID      int64  `json:"scan_id"`
}

// SearchResults contains paged search results.
type SearchResults struct {
	Results []SearchResult `json:"results"`
	Total   uint64         `json:"total"`
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Store = true
	textFieldMapping.IncludeTermVectors = true

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	keywordFieldMapping.Store = true

	numericFieldMapping := bleve.NewNumericFieldMapping()
	numericFieldMapping.Store = true

	docMapping.AddFieldMappingsAt("project_slug", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("version", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("license", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("license_text", textFieldMapping)
	docMapping.AddFieldMappingsAt("project_id", numericFieldMapping)
	docMapping.AddFieldMappingsAt("scan_id", numericFieldMapping)

	indexMapping.DefaultMapping = docMapping

	return indexMapping
}

// NewSearchIndex opens or creates a bleve index at the given path.
func NewSearchIndex(basePath string) (*SearchIndex, error) {
	indexPath := filepath.Join(basePath, ".search-index")

	idx, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		m := buildIndexMapping()
		idx, err = bleve.New(indexPath, m)
		if err != nil {
			return nil, fmt.Errorf("creating search index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}

	return &SearchIndex{index: idx, path: indexPath}, nil
}

// Close closes the bleve index.
func (si *SearchIndex) Close() error {
	return si.index.Close()
}

// IndexScan indexes the dependencies of one scan together with the license
// texts found in the bundle's licenses directory. Unreadable license files
// are skipped; the dependency is still indexed by its coordinates.
func (si *SearchIndex) IndexScan(projectID, scanID int64, projectSlug, bundleDir string, deps []database.Dependency) error {
	batch := si.index.NewBatch()

	for _, d := range deps {
		var licenseText string
		if d.LicenseFile != "" {
			path := filepath.Join(bundleDir, LicensesDir, d.LicenseFile)
			if data, err := os.ReadFile(path); err == nil {
				licenseText = string(data)
			}
		}

		docID := fmt.Sprintf("%d/%d/%s", projectID, scanID, d.Name())
		doc := indexDoc{
			ProjectSlug: projectSlug,
			Name:        d.Name(),
			Version:     d.Version,
			License:     d.License,
			LicenseText: licenseText,
			ProjectID:   projectID,
			ScanID:      scanID,
		}

		batch.Index(docID, doc)
	}

	if err := si.index.Batch(batch); err != nil {
		return fmt.Errorf("indexing batch: %w", err)
	}

	return nil
}

// DeleteScan removes all indexed documents for a given scan.
func (si *SearchIndex) DeleteScan(projectID, scanID int64) error {
	prefix := fmt.Sprintf("%d/%d/", projectID, scanID)

	q := bleve.NewMatchAllQuery()
	req := bleve.NewSearchRequest(q)
	req.Size = 10000
	req.Fields = []string{}

	results, err := si.index.Search(req)
	if err != nil {
		return fmt.Errorf("searching for scan docs: %w", err)
	}

	batch := si.index.NewBatch()
	for _, hit := range results.Hits {
		if strings.HasPrefix(hit.ID, prefix) {
			batch.Delete(hit.ID)
		}
	}

	if err := si.index.Batch(batch); err != nil {
		return fmt.Errorf("deleting scan docs: %w", err)
	}

	return nil
}

// Search performs a full-text search across indexed dependencies.
func (si *SearchIndex) Search(sq SearchQuery) (*SearchResults, error) {
	if sq.Limit <= 0 {
		sq.Limit = 20
	}

	// Build the text query across dependency names and license texts
	matchQ := bleve.NewMatchQuery(sq.Query)

	nameQ := bleve.NewMatchQuery(sq.Query)
	nameQ.SetField("name")
	nameQ.SetBoost(5.0)

	textPhraseQ := bleve.NewMatchPhraseQuery(sq.Query)
	textPhraseQ.SetField("license_text")
	textPhraseQ.SetBoost(2.0)

	// Fuzzy query for typo tolerance (low boost as fallback)
	fuzzyNameQ := bleve.NewFuzzyQuery(sq.Query)
	fuzzyNameQ.SetField("name")
	fuzzyNameQ.SetFuzziness(1)
	fuzzyNameQ.SetBoost(0.8)

	textQuery := bleve.NewDisjunctionQuery(matchQ, nameQ, textPhraseQ, fuzzyNameQ)

	// Build filter queries
	var filters []query.Query
	filters = append(filters, textQuery)

	if sq.ProjectSlug != "" {
		pq := bleve.NewTermQuery(sq.ProjectSlug)
		pq.SetField("project_slug")
		filters = append(filters, pq)
	}

	if sq.License != "" {
		lq := bleve.NewTermQuery(sq.License)
		lq.SetField("license")
		filters = append(filters, lq)
	}

	var finalQuery query.Query
	if len(filters) == 1 {
		finalQuery = filters[0]
	} else {
		finalQuery = bleve.NewConjunctionQuery(filters...)
	}

	searchReq := bleve.NewSearchRequestOptions(finalQuery, sq.Limit, sq.Offset, false)
	searchReq.Fields = []string{"project_slug", "name", "version", "license", "scan_id"}
	searchReq.Highlight = bleve.NewHighlightWithStyle(html.Name)
	searchReq.Highlight.AddField("license_text")

	searchResult, err := si.index.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := &SearchResults{
		Total:   searchResult.Total,
		Results: make([]SearchResult, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		sr := SearchResult{
			ProjectSlug: fieldString(hit.Fields, "project_slug"),
			Name:        fieldString(hit.Fields, "name"),
			Version:     fieldString(hit.Fields, "version"),
			License:     fieldString(hit.Fields, "license"),
		}
		if v, ok := hit.Fields["scan_id"].(float64); ok {
			sr.ScanID = int64(v)
		}

		if fragments, ok := hit.Fragments["license_text"]; ok && len(fragments) > 0 {
			sr.Snippet = fragments[0]
		}

		results.Results = append(results.Results, sr)
	}

	return results, nil
}

func fieldString(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
