package lsp

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// EnvServers names a JSON file of server overrides.
const EnvServers = "MYEDIT_LSP_CONFIG"

// ServerConfig maps language IDs to LSP server commands.
type ServerConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// DefaultServers returns built-in language server mappings.
func DefaultServers() map[string]ServerConfig {
	return map[string]ServerConfig{
		"go":         {Command: "gopls"},
		"typescript": {Command: "typescript-language-server", Args: []string{"--stdio"}},
		"javascript": {Command: "typescript-language-server", Args: []string{"--stdio"}},
		"python":     {Command: "pyright-langserver", Args: []string{"--stdio"}},
		"rust":       {Command: "rust-analyzer"},
		"c":          {Command: "clangd"},
		"cpp":        {Command: "clangd"},
		"java":       {Command: "jdtls"},
		"lua":        {Command: "lua-language-server"},
		"json":       {Command: "vscode-json-language-server", Args: []string{"--stdio"}},
	}
}

// ConfigPaths lists where server overrides are looked for, in order.
func ConfigPaths() []string {
	var paths []string
	if p := strings.TrimSpace(os.Getenv(EnvServers)); p != "" {
		paths = append(paths, p)
	}
	if root, err := os.UserConfigDir(); err == nil && root != "" {
		paths = append(paths, filepath.Join(root, "myedit", "lsp.json"))
	}
	return paths
}

// LoadServers returns the default servers with overrides from the first
// readable file in paths applied. Entries without a command are skipped.
func LoadServers(paths ...string) (map[string]ServerConfig, error) {
	servers := DefaultServers()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return servers, err
		}
		overrides := make(map[string]ServerConfig)
		if err := json.Unmarshal(data, &overrides); err != nil {
			return servers, &fs.PathError{Op: "parse", Path: path, Err: err}
		}
		for langID, cfg := range overrides {
			langID = strings.ToLower(strings.TrimSpace(langID))
			cfg.Command = strings.TrimSpace(cfg.Command)
			if langID == "" || cfg.Command == "" {
				continue
			}
			servers[langID] = cfg
		}
		break
	}
	return servers, nil
}

// LanguageID guesses the LSP language identifier for path from its name.
func LanguageID(path string) string {
	lexer := lexers.Match(filepath.Base(path))
	if lexer == nil {
		return ""
	}
	id := strings.ToLower(lexer.Config().Name)
	switch id {
	case "c++":
		return "cpp"
	case "typescriptreact", "tsx":
		return "typescript"
	}
	return id
}

// FileURI returns the file:// URI for path.
func FileURI(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	uriPath := filepath.ToSlash(abs)
	if !strings.HasPrefix(uriPath, "/") {
		uriPath = "/" + uriPath
	}
	u := &url.URL{
		Scheme: "file",
		Path:   uriPath,
	}
	return u.String()
}

// PathFromURI reverses FileURI. Non-file URIs are returned unchanged.
func PathFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return filepath.FromSlash(u.Path)
}
