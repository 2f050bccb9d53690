package proxy

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"sync"
	"time"

	"sjsage522/psa10finder/logger"
)

const defaultDialTimeout = 5 * time.Second

// ProxyInfo holds a configured proxy with its last measured latency
type ProxyInfo struct {
	URL      string        `json:"url"`
	Host     string        `json:"host"`
	Type     string        `json:"type"`
	Latency  time.Duration `json:"latency"`
	LastTest time.Time     `json:"last_test"`
	Working  bool          `json:"working"`
}

// Selector picks the fastest reachable proxy among the configured ones
type Selector struct {
	candidates  []string
	dialTimeout time.Duration

	mutex      sync.RWMutex
	proxies    []ProxyInfo
	lastUpdate time.Time
	log        *logger.Logger
}

// NewSelector creates a selector over proxy URLs such as
// "socks5://127.0.0.1:1080" or "http://10.0.0.2:3128"
func NewSelector(urls []string, dialTimeout time.Duration) *Selector {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	return &Selector{
		candidates:  urls,
		dialTimeout: dialTimeout,
		log:         logger.ForProxy(),
	}
}

// UpdateProxies tests every candidate concurrently and orders the working
// ones by latency
func (s *Selector) UpdateProxies(ctx context.Context) error {
	tested := make([]ProxyInfo, len(s.candidates))
	var wg sync.WaitGroup
	for i, raw := range s.candidates {
		wg.Add(1)
		go func(i int, raw string) {
			defer wg.Done()
			tested[i] = s.testProxyLatency(ctx, raw)
		}(i, raw)
	}
	wg.Wait()

	working := make([]ProxyInfo, 0, len(tested))
	for _, p := range tested {
		if p.Working {
			working = append(working, p)
		}
	}
	sort.SliceStable(working, func(i, j int) bool {
		return working[i].Latency < working[j].Latency
	})

	s.mutex.Lock()
	s.proxies = working
	s.lastUpdate = time.Now()
	s.mutex.Unlock()

	s.log.Info().
		Int("candidates", len(s.candidates)).
		Int("working", len(working)).
		Msg("Proxy latency test finished")

	if len(working) == 0 && len(s.candidates) > 0 {
		return fmt.Errorf("none of %d configured proxies is reachable", len(s.candidates))
	}
	return nil
}

// testProxyLatency dials the proxy and, for SOCKS5, performs the greeting
func (s *Selector) testProxyLatency(ctx context.Context, raw string) ProxyInfo {
	info := ProxyInfo{URL: raw, Latency: time.Hour}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		s.log.Debug().Str("proxy", raw).Msg("Invalid proxy URL")
		return info
	}
	info.Host = u.Host
	info.Type = u.Scheme

	dialer := net.Dialer{Timeout: s.dialTimeout}
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		s.log.Debug().Str("proxy", u.Host).Err(err).Msg("TCP connection failed")
		return info
	}
	defer conn.Close()

	if u.Scheme == "socks5" || u.Scheme == "socks5h" {
		if !s.testSOCKS5Handshake(conn) {
			s.log.Debug().Str("proxy", u.Host).Msg("SOCKS5 handshake failed")
			return info
		}
	}

	info.Working = true
	info.Latency = time.Since(start)
	info.LastTest = time.Now()
	s.log.Debug().
		Str("proxy", u.Host).
		Dur("latency", info.Latency).
		Msg("Proxy working")
	return info
}

// testSOCKS5Handshake performs a basic SOCKS5 handshake
func (s *Selector) testSOCKS5Handshake(conn net.Conn) bool {
	conn.SetDeadline(time.Now().Add(3 * time.Second))
	defer conn.SetDeadline(time.Time{})

	// VER=5, NMETHODS=1, METHODS=0 (no authentication)
	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		return false
	}

	// [VER, METHOD]
	resp := make([]byte, 2)
	if _, err := conn.Read(resp); err != nil {
		return false
	}
	return resp[0] == 0x05 && resp[1] == 0x00
}

// Fastest returns the fastest working proxy from the last update
func (s *Selector) Fastest() (*ProxyInfo, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.proxies) == 0 {
		return nil, fmt.Errorf("no working proxies available")
	}
	fastest := s.proxies[0]
	return &fastest, nil
}

// Stats returns current proxy statistics
func (s *Selector) Stats() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := map[string]interface{}{
		"total_proxies":   len(s.candidates),
		"working_proxies": len(s.proxies),
		"last_update":     s.lastUpdate,
	}
	if len(s.proxies) > 0 {
		stats["fastest_latency"] = s.proxies[0].Latency
		stats["fastest_proxy"] = s.proxies[0].Host
	}
	return stats
}

// Choose returns the proxy the renderer should use: the only configured one,
// or the fastest reachable one when several are configured. It returns ""
// when no proxy is configured.
func Choose(ctx context.Context, urls []string, dialTimeout time.Duration) (string, error) {
	switch len(urls) {
	case 0:
		return "", nil
	case 1:
		return urls[0], nil
	}
	selector := NewSelector(urls, dialTimeout)
	if err := selector.UpdateProxies(ctx); err != nil {
		return "", err
	}
	fastest, err := selector.Fastest()
	if err != nil {
		return "", err
	}
	selector.log.Info().
		Fields(selector.Stats()).
		Str("type", fastest.Type).
		Time("tested_at", fastest.LastTest).
		Msg("Proxy selected")
	return fastest.URL, nil
}
