package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zoedl/zoedl"
)

// rcConfig holds the subset of zoedl.Config a user can override from
// ~/.zoedlrc.
type rcConfig struct {
	threadNum  int
	retries    int
	maxSpeed   string
	minSpeed   string
	minSpeedS  int
	cacheBytes int64
	proxy      string
	cookies    string
	headers    http.Header
}

func defaultRCConfig() rcConfig {
	return rcConfig{threadNum: 8, retries: 1, minSpeedS: 10, cacheBytes: 20 << 20, headers: http.Header{}}
}

func loadRCConfig() rcConfig {
	cfg := defaultRCConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg
	}
	f, err := os.Open(filepath.Join(home, ".zoedlrc"))
	if err != nil {
		return cfg
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "thread_num":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.threadNum = v
			}
		case "fetch_info_retries":
			if v, err := strconv.Atoi(value); err == nil && v >= 0 {
				cfg.retries = v
			}
		case "max_speed":
			cfg.maxSpeed = value
		case "min_speed":
			cfg.minSpeed = value
		case "min_speed_duration_s":
			if v, err := strconv.Atoi(value); err == nil && v > 0 {
				cfg.minSpeedS = v
			}
		case "disk_cache_bytes":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil && v > 0 {
				cfg.cacheBytes = v
			}
		case "proxy":
			cfg.proxy = value
		case "cookie_list":
			cfg.cookies = value
		case "header":
			if k, v, ok := strings.Cut(value, ":"); ok {
				cfg.headers.Add(strings.TrimSpace(k), strings.TrimSpace(v))
			}
		}
	}
	return cfg
}

// parseBandwidthLimit parses a human string ("1M", "500K", "100KB/s")
// into bytes/sec, returning 0 on an empty string. buildConfig only calls
// it for a non-empty value, so an absent flag leaves the config default
// in place.
func parseBandwidthLimit(limit string) (int64, error) {
	if limit == "" {
		return 0, nil
	}

	limit = strings.TrimSuffix(strings.ToUpper(limit), "/S")
	limit = strings.TrimSpace(limit)

	var numStr, unit string
	for i, ch := range limit {
		if (ch >= '0' && ch <= '9') || ch == '.' {
			continue
		}
		numStr = limit[:i]
		unit = limit[i:]
		break
	}
	if numStr == "" {
		numStr = limit
	}

	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bandwidth limit: %s", limit)
	}

	var multiplier float64
	switch strings.ToUpper(strings.TrimSpace(unit)) {
	case "G", "GB":
		multiplier = 1024 * 1024 * 1024
	case "M", "MB":
		multiplier = 1024 * 1024
	case "K", "KB":
		multiplier = 1024
	case "B", "":
		multiplier = 1
	default:
		return 0, fmt.Errorf("unknown unit: %s", unit)
	}

	return int64(num * multiplier), nil
}

// buildConfig merges rcConfig with CLI flag overrides into a
// zoedl.Config, with flags always taking precedence over the rc file.
func buildConfig(rc rcConfig, threadNum int, maxSpeedFlag, minSpeedFlag string, hashKind, hashValue string) (zoedl.Config, error) {
	cfg := zoedl.DefaultConfig()

	if threadNum > 0 {
		cfg.ThreadNum = threadNum
	} else {
		cfg.ThreadNum = rc.threadNum
	}
	cfg.FetchInfoRetries = rc.retries
	cfg.DiskCacheBytes = rc.cacheBytes
	cfg.Proxy = rc.proxy
	cfg.CookieList = rc.cookies
	cfg.HTTPHeaders = rc.headers
	cfg.MinSpeedDuration = time.Duration(rc.minSpeedS) * time.Second

	maxSpeed := maxSpeedFlag
	if maxSpeed == "" {
		maxSpeed = rc.maxSpeed
	}
	if maxSpeed != "" {
		bps, err := parseBandwidthLimit(maxSpeed)
		if err != nil {
			return cfg, err
		}
		cfg.MaxSpeedBPS = bps
	}

	minSpeed := minSpeedFlag
	if minSpeed == "" {
		minSpeed = rc.minSpeed
	}
	if minSpeed != "" {
		bps, err := parseBandwidthLimit(minSpeed)
		if err != nil {
			return cfg, err
		}
		cfg.MinSpeedBPS = bps
	}

	if hashValue != "" {
		kind, err := parseHashKind(hashKind)
		if err != nil {
			return cfg, err
		}
		cfg.HashVerify = zoedl.HashVerify{Policy: zoedl.AlwaysVerify, Kind: kind, Value: hashValue}
	}

	return cfg, nil
}

func parseHashKind(s string) (zoedl.HashType, error) {
	switch strings.ToLower(s) {
	case "md5":
		return zoedl.HashMD5, nil
	case "crc32":
		return zoedl.HashCRC32, nil
	case "sha256", "":
		return zoedl.HashSHA256, nil
	default:
		return 0, fmt.Errorf("unsupported hash kind %q (want md5, crc32 or sha256)", s)
	}
}
