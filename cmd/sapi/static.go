package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go-sapi/internal/fixture"
)

// tryServeStatic serves an existing file under one of the static rules, the
// way the development server answers asset requests before invoking the
// application. It reports whether the request was handled.
func tryServeStatic(w http.ResponseWriter, r *http.Request, root string, rules []fixture.StaticRule) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}

	path := r.URL.Path

	for _, rule := range rules {
		if rule.Dir == "" || !strings.HasPrefix(path, rule.Prefix) {
			continue
		}

		relPath := filepath.Clean("/" + strings.TrimPrefix(path, rule.Prefix))
		baseDir := filepath.Join(root, rule.Dir)
		fullPath := filepath.Join(baseDir, relPath)

		// Prevent ../../ escapes
		if fullPath != baseDir && !strings.HasPrefix(fullPath, baseDir+string(filepath.Separator)) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return true
		}

		info, err := os.Stat(fullPath)
		if err != nil || info.IsDir() {
			continue
		}

		http.ServeFile(w, r, fullPath)
		return true
	}

	return false
}
