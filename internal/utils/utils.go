// Package utils provides small helpers shared by the services:
//
//   - Map, Filter: generic slice processing.
//   - Uniq, Without: id-list normalization for teams and read-state sets.
//   - JoinNonEmpty: display names assembled from optional parts.
//   - NormalizeLimit, Pages: paging bounds.
//   - GenerateRandomString: random credentials for bootstrap accounts.
package utils

import (
	"crypto/rand"
	"strings"
)

type mapFunc[E any, R any] func(E) R

// Map applies f to every element of s.
func Map[S ~[]E, E any, R any](s S, f mapFunc[E, R]) []R {
	result := make([]R, len(s))
	for i, e := range s {
		result[i] = f(e)
	}

	return result
}

type keepFunc[E any] func(E) bool

// Filter keeps the elements of s for which f is true.
func Filter[S ~[]E, E any](s S, f keepFunc[E]) S {
	result := S{}
	for _, v := range s {
		if f(v) {
			result = append(result, v)
		}
	}

	return result
}

// Uniq trims every entry, drops blanks and keeps the first occurrence of each value.
func Uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}

// JoinNonEmpty joins the non-blank parts with sep.
func JoinNonEmpty(sep string, parts ...string) string {
	return strings.Join(Filter(parts, func(s string) bool { return strings.TrimSpace(s) != "" }), sep)
}

// Without returns a copy of in with every occurrence of v removed.
func Without(in []string, v string) []string {
	return Filter(in, func(s string) bool { return s != v })
}

// NormalizeLimit clamps a page size into [1, max], using def for non-positive input.
func NormalizeLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}

	return n
}

// Pages is the number of pages needed for total items at limit per page.
func Pages(total, limit int) int {
	if limit <= 0 {
		return 0
	}

	return (total + limit - 1) / limit
}

func GenerateRandomString(length int) (string, error) {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	bytes := make([]byte, length)
	random := make([]byte, length)
	_, err := rand.Read(random)
	if err != nil {
		return "", err
	}
	for i := 0; i < length; i++ {
		bytes[i] = chars[int(random[i])%len(chars)]
	}
	return string(bytes), nil
}
