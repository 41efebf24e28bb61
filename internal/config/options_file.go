package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ytdlpOptionsFile is the on-disk shape of ytdlp.options_file. JSON documents
// parse as well since YAML is a superset.
type ytdlpOptionsFile struct {
	Args    []string       `yaml:"args"`
	Options map[string]any `yaml:"options"`
}

// YTDLPArgs returns the pass-through arguments appended to every yt-dlp
// invocation: extra_args first, then the contents of options_file. The file is
// read on each call so edits take effect for the next job without a restart.
// A missing file yields only extra_args.
func (c *Config) YTDLPArgs() ([]string, error) {
	args := append([]string(nil), c.YTDLP.ExtraArgs...)
	path := strings.TrimSpace(c.YTDLP.OptionsFile)
	if path == "" {
		return args, nil
	}
	fileArgs, err := LoadYTDLPOptions(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return args, nil
		}
		return nil, err
	}
	return append(args, fileArgs...), nil
}

// LoadYTDLPOptions parses an options file into yt-dlp command-line arguments.
//
// The options map translates keys to long flags: true becomes "--key", false
// becomes "--no-key", lists repeat the flag, and anything else is passed as the
// flag value. Underscores in keys are rewritten to dashes.
func LoadYTDLPOptions(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ytdlp options file: %w", err)
	}
	var doc ytdlpOptionsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse ytdlp options file %s: %w", path, err)
	}

	args := make([]string, 0, len(doc.Args)+len(doc.Options)*2)
	for _, arg := range doc.Args {
		if arg = strings.TrimSpace(arg); arg != "" {
			args = append(args, arg)
		}
	}

	keys := make([]string, 0, len(doc.Options))
	for key := range doc.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		flag := strings.ReplaceAll(strings.TrimLeft(strings.TrimSpace(key), "-"), "_", "-")
		if flag == "" {
			continue
		}
		switch value := doc.Options[key].(type) {
		case nil:
			args = append(args, "--"+flag)
		case bool:
			if value {
				args = append(args, "--"+flag)
			} else {
				args = append(args, "--no-"+flag)
			}
		case []any:
			for _, item := range value {
				args = append(args, "--"+flag, fmt.Sprint(item))
			}
		default:
			args = append(args, "--"+flag, fmt.Sprint(value))
		}
	}
	return args, nil
}
