package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vaultbox/emts/internal/cryptoprim"
	"github.com/vaultbox/emts/internal/logging"
	"github.com/vaultbox/emts/internal/models"
	"github.com/vaultbox/emts/internal/tokenizer"
)

var fieldAliases = map[string]string{
	"from":      "sender",
	"to":        "recipient",
	"sender":    "sender",
	"recipient": "recipient",
	"subject":   "subject",
	"body":      "body",
}

var bareTextSources = []string{"subject", "body", "sender", "recipient"}

// Query resolves filter against the token index and plaintext columns,
// then materializes a decrypted, paginated page. See spec.md §4.3 "Query
// algorithm" for the resolution steps this mirrors.
func (m *Mailstore) Query(filter models.Filter, page, pageSize int, sortBy models.SortField, sortOrder models.SortOrder) models.Page {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if sortBy == "" {
		sortBy = models.SortByArrivalTime
	}
	if sortOrder == "" {
		sortOrder = models.SortDesc
	}

	candidateIDs, haveCandidates, isReadOverride := m.resolveTextCandidates(filter)

	isRead := filter.IsRead
	if isReadOverride != nil {
		isRead = isReadOverride
	}

	if filter.RecipientUsername != "" {
		recipientIDs := m.lookupCandidates(emitFieldHashes("recipient", filter.RecipientUsername, m.hasher))
		if haveCandidates {
			candidateIDs = intersectIDs(candidateIDs, recipientIDs)
		} else {
			candidateIDs = recipientIDs
		}
		haveCandidates = true
	}

	rows := m.fetchRows(candidateIDs, haveCandidates, filter.DateFrom, filter.DateTo, isRead, sortBy, sortOrder)
	total := len(rows)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	var pageRows []rawRow
	if start < len(rows) {
		end := start + pageSize
		if end > len(rows) {
			end = len(rows)
		}
		pageRows = rows[start:end]
	}

	items := make([]models.ListItem, 0, len(pageRows))
	for _, r := range pageRows {
		msg, ok := m.decryptMessage(r)
		if !ok {
			continue
		}
		items = append(items, models.ListItem{
			ID:          msg.ID,
			Sender:      msg.Sender,
			Recipient:   msg.Recipient,
			Subject:     msg.Subject,
			BodySnippet: bodySnippet(msg.Body),
			ArrivalTime: msg.ArrivalTime,
			IsRead:      msg.IsRead,
			Tags:        msg.Tags,
			SizeBytes:   msg.SizeBytes,
		})
	}

	return models.Page{
		Items:       items,
		TotalItems:  total,
		TotalPages:  totalPages,
		CurrentPage: page,
		PageSize:    pageSize,
	}
}

// resolveTextCandidates implements step 1 of the query algorithm: deriving
// a token-hash candidate set from advanced or free-text search input.
// haveCandidates distinguishes "no text filter at all" (candidate set is
// every message) from "text filter tokenized to nothing" (candidate set is
// empty), per spec.md §4.3's edge case.
func (m *Mailstore) resolveTextCandidates(filter models.Filter) (ids []string, haveCandidates bool, isReadOverride *bool) {
	switch {
	case filter.Advanced != "":
		hashes, override, hasText := parseAdvanced(filter.Advanced, m.hasher)
		if !hasText {
			// Every clause was an is_read override (or the expression was
			// empty): candidate set is "all messages" per spec.md §4.3, not
			// "zero matches". Text clauses that tokenize to nothing fall
			// through to an empty candidate set below.
			return nil, false, override
		}
		return m.lookupCandidates(hashes), true, override

	case filter.Search != "":
		if tokenizer.IsFullEmail(filter.Search) {
			exact := []string{
				m.hasher.Hash("sender", strings.ToLower(filter.Search)),
				m.hasher.Hash("recipient", strings.ToLower(filter.Search)),
			}
			if ids := m.lookupCandidates(exact); len(ids) > 0 {
				return ids, true, nil
			}
			return m.lookupCandidates(emitBareText(filter.Search, m.hasher)), true, nil
		}
		return m.lookupCandidates(emitBareText(filter.Search, m.hasher)), true, nil

	default:
		return nil, false, nil
	}
}

// parseAdvanced splits an advanced expression on ';' and resolves each
// clause to token hashes (OR semantics across clauses per spec.md §4.3).
// hasText reports whether any clause other than an is_read clause was seen.
func parseAdvanced(expr string, hasher *cryptoprim.TokenHasher) (hashes []string, isReadOverride *bool, hasText bool) {
	for _, sub := range strings.Split(expr, ";") {
		sub = strings.TrimSpace(sub)
		if sub == "" {
			continue
		}

		field, value, ok := splitFieldValue(sub)
		if !ok {
			hasText = true
			hashes = append(hashes, emitBareText(sub, hasher)...)
			continue
		}
		value = stripQuotes(value)

		if field == "is_read" {
			if b, ok := parseTruthy(value); ok {
				isReadOverride = &b
			}
			continue
		}

		hasText = true
		source, known := fieldAliases[field]
		if !known {
			hashes = append(hashes, emitBareText(sub, hasher)...)
			continue
		}
		hashes = append(hashes, emitFieldHashes(source, value, hasher)...)
	}
	return hashes, isReadOverride, hasText
}

// emitFieldHashes resolves a single field:value clause, taking the exact
// full-address fast path for sender/recipient when value is an email
// address (spec.md §4.3 step 1).
func emitFieldHashes(source, value string, hasher *cryptoprim.TokenHasher) []string {
	if (source == "sender" || source == "recipient") && tokenizer.IsFullEmail(value) {
		return []string{hasher.Hash(source, strings.ToLower(value))}
	}
	var hashes []string
	for token := range tokenizer.Tokenize(value) {
		hashes = append(hashes, hasher.Hash(source, token))
	}
	return hashes
}

// emitBareText tokenizes value and hashes it against every source, for
// bare advanced clauses and for simple "search" mode.
func emitBareText(value string, hasher *cryptoprim.TokenHasher) []string {
	var hashes []string
	tokens := tokenizer.Tokenize(value)
	for _, source := range bareTextSources {
		for token := range tokens {
			hashes = append(hashes, hasher.Hash(source, token))
		}
	}
	return hashes
}

func splitFieldValue(sub string) (field, value string, ok bool) {
	i := strings.Index(sub, ":")
	if i <= 0 {
		return "", "", false
	}
	field = strings.ToLower(strings.TrimSpace(sub[:i]))
	if strings.ContainsAny(field, " \t") {
		return "", "", false
	}
	return field, strings.TrimSpace(sub[i+1:]), true
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func parseTruthy(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}

// lookupCandidates queries the token index for message ids matching any of
// hashes (step 2: OR over all emitted hashes).
func (m *Mailstore) lookupCandidates(hashes []string) []string {
	if len(hashes) == 0 {
		return []string{}
	}
	unique := dedupe(hashes)
	placeholders := make([]string, len(unique))
	args := make([]any, len(unique))
	for i, h := range unique {
		placeholders[i] = "?"
		args[i] = h
	}
	query := fmt.Sprintf(`SELECT DISTINCT message_id FROM tokens WHERE token_hash IN (%s)`, strings.Join(placeholders, ","))
	rows, err := m.db.Query(query, args...)
	if err != nil {
		logging.ErrorLog("mailstore candidate lookup: %v", err)
		return []string{}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// fetchRows applies the plaintext post-filters (step 3) and ordering (step
// 4) on top of the candidate set.
func (m *Mailstore) fetchRows(candidateIDs []string, haveCandidates bool, dateFrom, dateTo string, isRead *bool, sortBy models.SortField, sortOrder models.SortOrder) []rawRow {
	if haveCandidates && len(candidateIDs) == 0 {
		return nil
	}

	var clauses []string
	var args []any

	if haveCandidates {
		placeholders := make([]string, len(candidateIDs))
		for i, id := range candidateIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		clauses = append(clauses, fmt.Sprintf("id IN (%s)", strings.Join(placeholders, ",")))
	}
	if isRead != nil {
		clauses = append(clauses, "is_read = ?")
		args = append(args, *isRead)
	}
	if dateFrom != "" {
		clauses = append(clauses, "arrival_time >= ?")
		args = append(args, dateFrom)
	}
	if dateTo != "" {
		clauses = append(clauses, "arrival_time <= ?")
		args = append(args, dateTo)
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	orderCol := "arrival_time"
	if sortBy == models.SortByIsRead {
		orderCol = "is_read"
	}
	orderDir := "DESC"
	if sortOrder == models.SortAsc {
		orderDir = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT id, sender, recipient, subject, body, is_read, arrival_time, tags
		FROM messages %s
		ORDER BY %s %s, arrival_time DESC`, where, orderCol, orderDir)

	rows, err := m.db.Query(query, args...)
	if err != nil {
		logging.ErrorLog("mailstore query: %v", err)
		return nil
	}
	defer rows.Close()

	var out []rawRow
	for rows.Next() {
		var r rawRow
		if err := rows.Scan(&r.id, &r.senderCt, &r.recipientCt, &r.subjectCt, &r.bodyCt, &r.isRead, &r.arrivalTime, &r.tags); err != nil {
			logging.ErrorLog("mailstore query scan: %v", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

func intersectIDs(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func dedupe(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// bodySnippet strips HTML-like tags, collapses whitespace, and truncates to
// 100 characters plus an ellipsis (spec.md §4.3 step 5).
func bodySnippet(body string) string {
	stripped := htmlTagPattern.ReplaceAllString(body, "")
	collapsed := strings.TrimSpace(whitespacePattern.ReplaceAllString(stripped, " "))
	runes := []rune(collapsed)
	if len(runes) > 100 {
		return string(runes[:100]) + "…"
	}
	return collapsed
}
