package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"sitecraft/internal/models"

	"github.com/labstack/gommon/random"
)

// CommandRunner runs an external command in dir and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func NewExecRunner() CommandRunner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, firstArgs(args), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

func firstArgs(args []string) string {
	n := 2
	if len(args) < n {
		n = len(args)
	}
	return strings.Join(args[:n], " ")
}

// ProgressFunc receives a human readable line per WP-CLI step.
type ProgressFunc func(msg string)

type WordPressConfig struct {
	CLIBinary  string
	SitesRoot  string
	BaseDomain string
	URLScheme  string
	DBHost     string
	DBUser     string
	DBPassword string
	AdminEmail string
	AllowRoot  bool
}

type ProvisionResult struct {
	Path          string `json:"wp_path"`
	URL           string `json:"wp_url"`
	AdminUser     string `json:"admin_user"`
	AdminPassword string `json:"admin_password"`
	DBName        string `json:"db_name"`
}

// PageContent is one compiled page ready for WordPress.
type PageContent struct {
	Slug    string
	Title   string
	Content string
}

type WordPressService interface {
	Provision(ctx context.Context, site *models.Site, progress ProgressFunc) (*ProvisionResult, error)
	// PublishPages creates or updates each page and returns the page slug to post id map.
	PublishPages(ctx context.Context, site *models.Site, pages []PageContent, progress ProgressFunc) (map[string]int, error)
	Delete(ctx context.Context, site *models.Site, progress ProgressFunc) error
}

type wordPressService struct {
	cfg    WordPressConfig
	runner CommandRunner
}

const wpAdminUser = "sitecraft-admin"

func NewWordPressService(cfg WordPressConfig, runner CommandRunner) WordPressService {
	if cfg.CLIBinary == "" {
		cfg.CLIBinary = "wp"
	}
	if cfg.URLScheme == "" {
		cfg.URLScheme = "https"
	}
	if runner == nil {
		runner = NewExecRunner()
	}
	return &wordPressService{cfg: cfg, runner: runner}
}

// sitePath is keyed on the site id so a reused slug never shares a directory
// with a deleted site.
func (s *wordPressService) sitePath(site *models.Site) string {
	return filepath.Join(s.cfg.SitesRoot, site.TenantID.String(), site.ID.String())
}

func (s *wordPressService) siteURL(site *models.Site) string {
	host := strings.TrimSpace(site.Domain)
	if host == "" {
		host = fmt.Sprintf("%s-%s.%s", site.Slug, site.TenantID.String()[:8], s.cfg.BaseDomain)
	}
	return s.cfg.URLScheme + "://" + host
}

func dbName(site *models.Site) string {
	return "wp_" + strings.ReplaceAll(site.ID.String(), "-", "")
}

// wp runs one WP-CLI command against the site at path.
func (s *wordPressService) wp(ctx context.Context, path string, progress ProgressFunc, args ...string) (string, error) {
	full := append([]string{}, args...)
	full = append(full, "--path="+path)
	if s.cfg.AllowRoot {
		full = append(full, "--allow-root")
	}

	line := "wp " + strings.Join(redactArgs(full), " ")
	log.Printf("DEBUG: %s", line)
	if progress != nil {
		progress(line)
	}

	out, err := s.runner.Run(ctx, path, s.cfg.CLIBinary, full...)
	if err != nil {
		return "", fmt.Errorf("wp %s: %w", strings.Join(redactArgs(args[:min(2, len(args))]), " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

var secretFlags = []string{"--admin_password=", "--dbpass=", "--user_pass="}

func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = a
		for _, f := range secretFlags {
			if strings.HasPrefix(a, f) {
				out[i] = f + "***"
			}
		}
		if strings.HasPrefix(a, "--post_content=") {
			out[i] = fmt.Sprintf("--post_content=<%d bytes>", len(a)-len("--post_content="))
		}
	}
	return out
}

func (s *wordPressService) Provision(ctx context.Context, site *models.Site, progress ProgressFunc) (*ProvisionResult, error) {
	path := s.sitePath(site)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create site directory: %w", err)
	}

	res := &ProvisionResult{
		Path:          path,
		URL:           s.siteURL(site),
		AdminUser:     wpAdminUser,
		AdminPassword: random.String(24, random.Alphanumeric),
		DBName:        dbName(site),
	}

	setup := [][]string{
		{"core", "download", "--skip-content", "--force"},
		{"config", "create",
			"--dbname=" + res.DBName,
			"--dbuser=" + s.cfg.DBUser,
			"--dbpass=" + s.cfg.DBPassword,
			"--dbhost=" + s.cfg.DBHost,
			"--skip-check", "--force"},
	}
	if err := s.run(ctx, path, progress, setup); err != nil {
		return nil, err
	}
	if err := s.ensureDatabase(ctx, path, progress); err != nil {
		return nil, err
	}

	// core install is a no-op on an installed site, so the password is set
	// explicitly to keep a retried provision in sync with the result.
	install := [][]string{
		{"core", "install",
			"--url=" + res.URL,
			"--title=" + site.Name,
			"--admin_user=" + res.AdminUser,
			"--admin_password=" + res.AdminPassword,
			"--admin_email=" + s.cfg.AdminEmail,
			"--skip-email"},
		{"user", "update", res.AdminUser, "--user_pass=" + res.AdminPassword, "--skip-email"},
		{"option", "update", "blogname", site.Name},
		{"option", "update", "blogdescription", truncateRunes(site.Business.Description, 140)},
		{"rewrite", "structure", "/%postname%/", "--hard"},
	}
	if err := s.run(ctx, path, progress, install); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *wordPressService) run(ctx context.Context, path string, progress ProgressFunc, steps [][]string) error {
	for _, step := range steps {
		if _, err := s.wp(ctx, path, progress, step...); err != nil {
			return err
		}
	}
	return nil
}

// ensureDatabase creates the site database unless an earlier attempt already did.
func (s *wordPressService) ensureDatabase(ctx context.Context, path string, progress ProgressFunc) error {
	if _, err := s.wp(ctx, path, progress, "db", "check"); err == nil {
		log.Printf("DEBUG: database for %s already exists", path)
		return nil
	}
	_, err := s.wp(ctx, path, progress, "db", "create")
	return err
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (s *wordPressService) PublishPages(ctx context.Context, site *models.Site, pages []PageContent, progress ProgressFunc) (map[string]int, error) {
	if site.WPPath == "" {
		return nil, fmt.Errorf("site %s has no WordPress install", site.ID)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to publish")
	}

	ids := make(map[string]int, len(pages))
	for _, p := range pages {
		if existing, ok := site.WPPageIDs[p.Slug]; ok && existing > 0 {
			_, err := s.wp(ctx, site.WPPath, progress, "post", "update", strconv.Itoa(existing),
				"--post_title="+p.Title,
				"--post_name="+p.Slug,
				"--post_content="+p.Content,
				"--post_status=publish")
			if err != nil {
				return nil, err
			}
			ids[p.Slug] = existing
			continue
		}

		out, err := s.wp(ctx, site.WPPath, progress, "post", "create",
			"--post_type=page",
			"--post_status=publish",
			"--post_title="+p.Title,
			"--post_name="+p.Slug,
			"--post_content="+p.Content,
			"--porcelain")
		if err != nil {
			return nil, err
		}
		id, err := parsePostID(out)
		if err != nil {
			return nil, fmt.Errorf("create page %s: %w", p.Slug, err)
		}
		ids[p.Slug] = id
	}

	front, ok := ids["home"]
	if !ok {
		front = ids[pages[0].Slug]
	}
	if _, err := s.wp(ctx, site.WPPath, progress, "option", "update", "show_on_front", "page"); err != nil {
		return nil, err
	}
	if _, err := s.wp(ctx, site.WPPath, progress, "option", "update", "page_on_front", strconv.Itoa(front)); err != nil {
		return nil, err
	}
	return ids, nil
}

// parsePostID reads the id printed by --porcelain, ignoring any warnings before it.
func parsePostID(out string) (int, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	id, err := strconv.Atoi(last)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("unexpected post id %q", last)
	}
	return id, nil
}

func (s *wordPressService) Delete(ctx context.Context, site *models.Site, progress ProgressFunc) error {
	path := site.WPPath
	if path == "" {
		path = s.sitePath(site)
	}
	if err := s.checkInsideRoot(path); err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(path, "wp-config.php")); err == nil {
		if _, err := s.wp(ctx, path, progress, "db", "drop", "--yes"); err != nil {
			return err
		}
	} else {
		log.Printf("WARN: no wp-config.php under %s, skipping db drop", path)
	}

	if progress != nil {
		progress("remove " + path)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove site directory: %w", err)
	}
	return nil
}

func (s *wordPressService) checkInsideRoot(path string) error {
	root, err := filepath.Abs(s.cfg.SitesRoot)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to touch %s outside sites root %s", path, root)
	}
	return nil
}
