package reprise

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/reprise/types"
)

// ErrInvalidURI is returned when a connection string cannot be parsed.
var ErrInvalidURI = errors.New("reprise: invalid connection string")

// ConnString is a parsed connection string.
//
// Format:
//
//	scheme://host1[:port1][,host2[:port2]...][/database][?options]
//
// Supported options (keys are case-insensitive):
//   - retryReads: true or false
//   - readPreference: primary, primaryPreferred, secondary, secondaryPreferred, nearest
//   - readPreferenceTags: "k:v,k:v", repeatable; an empty value matches any server
//   - serverSelectionTimeoutMS: milliseconds
//   - localThresholdMS: milliseconds
//
// Unknown options are kept in Unknown and otherwise ignored.
type ConnString struct {
	Scheme   string
	Hosts    []string
	Database string

	RetryReads             *bool
	ReadPreference         *ReadPreference
	ServerSelectionTimeout time.Duration
	LocalThreshold         time.Duration

	Unknown map[string][]string
}

// ParseURI parses a connection string.
//
// Parameters:
//   - uri: The connection string
//
// Returns:
//   - *ConnString: Parsed connection string
//   - error: ErrInvalidURI (wrapped) describing the problem
//
// Example:
//
//	cs, err := reprise.ParseURI("reprise://db-1:27017,db-2:27017/app?readPreference=nearest&retryReads=false")
//	client, err := reprise.NewClient(transport, view, cs.Options()...)
func ParseURI(uri string) (*ConnString, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return nil, fmt.Errorf("%w: missing scheme in %q", ErrInvalidURI, uri)
	}

	rest, query, _ := strings.Cut(rest, "?")
	hostPart, database, _ := strings.Cut(rest, "/")
	if hostPart == "" {
		return nil, fmt.Errorf("%w: no hosts", ErrInvalidURI)
	}

	cs := &ConnString{Scheme: scheme}
	for h := range strings.SplitSeq(hostPart, ",") {
		if h == "" {
			return nil, fmt.Errorf("%w: empty host", ErrInvalidURI)
		}
		cs.Hosts = append(cs.Hosts, h)
	}

	if database != "" {
		db, err := url.PathUnescape(database)
		if err != nil {
			return nil, fmt.Errorf("%w: database: %w", ErrInvalidURI, err)
		}
		cs.Database = db
	}

	if query == "" {
		return cs, nil
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}

	var (
		mode    *ReadPreferenceMode
		tagSets []TagSet
		hasTags bool
	)
	for key, vals := range values {
		last := vals[len(vals)-1]

		switch strings.ToLower(key) {
		case "retryreads":
			b, err := strconv.ParseBool(last)
			if err != nil {
				return nil, fmt.Errorf("%w: retryReads: %w", ErrInvalidURI, err)
			}
			cs.RetryReads = &b
		case "readpreference":
			m, err := types.ParseReadPreferenceMode(last)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
			}
			mode = &m
		case "readpreferencetags":
			hasTags = true
			for _, v := range vals {
				ts, err := parseTagSet(v)
				if err != nil {
					return nil, err
				}
				tagSets = append(tagSets, ts)
			}
		case "serverselectiontimeoutms":
			d, err := parseMillis(key, last)
			if err != nil {
				return nil, err
			}
			cs.ServerSelectionTimeout = d
		case "localthresholdms":
			d, err := parseMillis(key, last)
			if err != nil {
				return nil, err
			}
			cs.LocalThreshold = d
		default:
			if cs.Unknown == nil {
				cs.Unknown = make(map[string][]string)
			}
			cs.Unknown[key] = vals
		}
	}

	if mode != nil || hasTags {
		rp := ReadPreference{TagSets: tagSets}
		if mode != nil {
			rp.Mode = *mode
		}
		if err := rp.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
		}
		cs.ReadPreference = &rp
	}

	return cs, nil
}

// Options converts the parsed settings to client options.
func (cs *ConnString) Options() []Option {
	var opts []Option
	if cs.RetryReads != nil {
		opts = append(opts, WithRetryReads(*cs.RetryReads))
	}
	if cs.ReadPreference != nil {
		opts = append(opts, WithReadPreference(*cs.ReadPreference))
	}
	if cs.ServerSelectionTimeout > 0 {
		opts = append(opts, WithServerSelectionTimeout(cs.ServerSelectionTimeout))
	}
	if cs.LocalThreshold > 0 {
		opts = append(opts, WithLocalThreshold(cs.LocalThreshold))
	}

	return opts
}

// parseTagSet parses "dc:east,rack:1". An empty string is the empty tag set.
func parseTagSet(s string) (TagSet, error) {
	ts := TagSet{}
	if s == "" {
		return ts, nil
	}

	for pair := range strings.SplitSeq(s, ",") {
		k, v, ok := strings.Cut(pair, ":")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: readPreferenceTags %q", ErrInvalidURI, s)
		}
		ts[k] = v
	}

	return ts, nil
}

func parseMillis(key, s string) (time.Duration, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidURI, key)
	}

	return time.Duration(ms) * time.Millisecond, nil
}
