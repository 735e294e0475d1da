package password

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	MinStrongBytes = 8
	MaxStrongBytes = 255

	DefaultPwnedBaseURL = "https://api.pwnedpasswords.com"
)

// ErrPwnedUnavailable wraps transport and status failures of the range API.
var ErrPwnedUnavailable = errors.New("password: pwned passwords unavailable")

// BreachChecker reports whether a password appears in a breach corpus.
type BreachChecker interface {
	Compromised(ctx context.Context, password string) (bool, error)
}

// StrengthChecker accepts passwords of 8 to 255 bytes that no BreachChecker
// has seen. A nil Breaches skips the lookup.
type StrengthChecker struct {
	Breaches BreachChecker
}

func NewStrengthChecker(breaches BreachChecker) *StrengthChecker {
	return &StrengthChecker{Breaches: breaches}
}

func (c *StrengthChecker) Strong(ctx context.Context, password string) (bool, error) {
	if len(password) < MinStrongBytes || len(password) > MaxStrongBytes {
		return false, nil
	}
	if c == nil || c.Breaches == nil {
		return true, nil
	}
	pwned, err := c.Breaches.Compromised(ctx, password)
	if err != nil {
		return false, err
	}
	return !pwned, nil
}

// PwnedConfig configures the k-anonymity range client.
type PwnedConfig struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond and Burst pace outbound lookups.
	RequestsPerSecond float64
	Burst             int
}

func DefaultPwnedConfig() PwnedConfig {
	return PwnedConfig{
		BaseURL:           DefaultPwnedBaseURL,
		Timeout:           5 * time.Second,
		RequestsPerSecond: 10,
		Burst:             20,
	}
}

// PwnedChecker queries the Have I Been Pwned range API. Only the first five
// hex characters of the SHA-1 digest leave the process.
type PwnedChecker struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewPwnedChecker(cfg PwnedConfig) *PwnedChecker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultPwnedBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &PwnedChecker{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}
}

func (p *PwnedChecker) Compromised(ctx context.Context, password string) (bool, error) {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	if err := p.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("%w: %v", ErrPwnedUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/range/"+prefix, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPwnedUnavailable, err)
	}
	req.Header.Set("Add-Padding", "true")
	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPwnedUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: status %d", ErrPwnedUnavailable, resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		hashSuffix, count, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(hashSuffix, suffix) {
			continue
		}
		// Padding entries carry a zero count.
		n, err := strconv.Atoi(count)
		return err == nil && n > 0, nil
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrPwnedUnavailable, err)
	}
	return false, nil
}
