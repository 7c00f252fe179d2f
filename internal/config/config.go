// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config reads report configuration from YAML files and flags.
package config

import (
	"flag"
	"os"

	"gopkg.in/yaml.v2"

	"go.chromium.org/junitreport/errors"
	"go.chromium.org/junitreport/internal/command"
	"go.chromium.org/junitreport/report"
)

// file is the YAML representation of report.Config. Pointer fields
// distinguish values absent from the file from zero values.
type file struct {
	ReportPath   *string  `yaml:"report_path"`
	ReportDir    *string  `yaml:"report_dir"`
	MultiFile    *bool    `yaml:"multi_file"`
	FilterTraces *bool    `yaml:"filter_traces"`
	TraceFilters []string `yaml:"trace_filters"`
	Watch        struct {
		Keywords   []string `yaml:"keywords"`
		Components []string `yaml:"components"`
		Lines      *int     `yaml:"lines"`
		Source     *string  `yaml:"source"`
		SSHKey     *string  `yaml:"ssh_key"`
	} `yaml:"watch"`
}

// Load reads the YAML file at path and applies the values it sets to cfg.
// Unknown keys are rejected.
func Load(path string, cfg *report.Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config")
	}
	var f file
	if err := yaml.UnmarshalStrict(b, &f); err != nil {
		return errors.Wrapf(err, "failed to parse %s", path)
	}

	if f.ReportPath != nil {
		cfg.Path = *f.ReportPath
	}
	if f.ReportDir != nil {
		cfg.Dir = *f.ReportDir
	}
	if f.MultiFile != nil {
		cfg.MultiFile = *f.MultiFile
	}
	if f.FilterTraces != nil {
		cfg.FilterTraces = *f.FilterTraces
	}
	if f.TraceFilters != nil {
		cfg.TraceFilters = f.TraceFilters
	}
	if f.Watch.Keywords != nil {
		cfg.WatchKeywords = f.Watch.Keywords
	}
	if f.Watch.Components != nil {
		cfg.WatchComponents = f.Watch.Components
	}
	if f.Watch.Lines != nil {
		cfg.WatchLines = *f.Watch.Lines
	}
	if f.Watch.Source != nil {
		cfg.WatchSource = *f.Watch.Source
	}
	if f.Watch.SSHKey != nil {
		cfg.WatchKeyFile = *f.Watch.SSHKey
	}
	return nil
}

// copiers copy the field of report.Config set by each flag.
var copiers = map[string]func(dst, src *report.Config){
	"report":          func(dst, src *report.Config) { dst.Path = src.Path },
	"reportdir":       func(dst, src *report.Config) { dst.Dir = src.Dir },
	"multifile":       func(dst, src *report.Config) { dst.MultiFile = src.MultiFile },
	"filtertraces":    func(dst, src *report.Config) { dst.FilterTraces = src.FilterTraces },
	"watch":           func(dst, src *report.Config) { dst.WatchKeywords = src.WatchKeywords },
	"watchcomponents": func(dst, src *report.Config) { dst.WatchComponents = src.WatchComponents },
	"watchlines":      func(dst, src *report.Config) { dst.WatchLines = src.WatchLines },
	"watchsource":     func(dst, src *report.Config) { dst.WatchSource = src.WatchSource },
	"sshkey":          func(dst, src *report.Config) { dst.WatchKeyFile = src.WatchKeyFile },
}

// SetFlags adds flags setting fields of cfg to f. cfg should hold default
// values, as returned by report.DefaultConfig.
func SetFlags(f *flag.FlagSet, cfg *report.Config) {
	f.StringVar(&cfg.Path, "report", cfg.Path,
		"report file path (default "+report.DefaultPath+", or "+report.DefaultMultiFilePath+" with -multifile)")
	f.StringVar(&cfg.Dir, "reportdir", cfg.Dir, "directory relative report paths are resolved against")
	f.BoolVar(&cfg.MultiFile, "multifile", cfg.MultiFile, "write one report file per suite")
	f.BoolVar(&cfg.FilterTraces, "filtertraces", cfg.FilterTraces, "remove test harness frames from traces")

	kw := command.RepeatedFlag(func(v string) error {
		cfg.WatchKeywords = append(cfg.WatchKeywords, v)
		return nil
	})
	f.Var(&kw, "watch", "report a crash when a log line contains this keyword (may be repeated)")
	f.Var(command.NewListFlag(",", func(v []string) { cfg.WatchComponents = v }, cfg.WatchComponents),
		"watchcomponents", "comma-separated log tags or syslog identifiers to watch")
	f.IntVar(&cfg.WatchLines, "watchlines", cfg.WatchLines, "number of log lines captured after a crash keyword")
	f.StringVar(&cfg.WatchSource, "watchsource", cfg.WatchSource,
		"watched log: logcat, journal, cmd:<command>, file:<path>, -, ssh:[user@]host[:port] or adb:[serial]")
	f.StringVar(&cfg.WatchKeyFile, "sshkey", cfg.WatchKeyFile, "SSH private key for ssh: log sources")
}

// Merge returns base with the fields of flagged applied for every flag set
// on the command line of f. Flags registered by SetFlags on flagged thus take
// precedence over values from base, e.g. those read by Load.
func Merge(f *flag.FlagSet, base, flagged report.Config) report.Config {
	f.Visit(func(fl *flag.Flag) {
		if cp, ok := copiers[fl.Name]; ok {
			cp(&base, &flagged)
		}
	})
	return base
}
