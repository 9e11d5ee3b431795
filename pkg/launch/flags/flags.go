// Zaparoo Runtimes
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Runtimes.
//
// Zaparoo Runtimes is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Runtimes is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Runtimes.  If not, see <http://www.gnu.org/licenses/>.

// Package flags turns an option bag into the command line tokens of a
// runtime, driven by a per-runtime Profile.
//
// Emission rules, per value:
//   - true emits the flag alone, false and null emit nothing
//   - numeric zero is unset unless the rule keeps zero
//   - blank strings are unset, other strings are trimmed
//   - lists emit the flag once per non-empty element, in order
//
// Anything else is logged and skipped; normalization never fails.
package flags

import (
	"slices"
	"strconv"
	"strings"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/launch/options"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// ContradictionPair names two boolean options that must not both be set.
// When both are true the negative one wins.
type ContradictionPair struct {
	Positive string
	Negative string
}

// Rule overrides the default emission of a single option.
type Rule struct {
	// Default is omitted from the output when the value equals it.
	Default any
	Min     *float64
	Max     *float64
	// Flag replaces the name derived from the key.
	Flag string
	// Joined emits the value glued to the flag (-Pkey=value) instead of as
	// a separate token. Values already carrying the flag are kept as is.
	Joined bool
	// KeepZero makes numeric zero a real value.
	KeepZero bool
	// ExpandHome expands a leading ~/ in string values.
	ExpandHome bool
}

// DefaultResource is a file injected when the caller did not choose one.
type DefaultResource struct {
	Flag    string
	Path    string
	Aliases []string
}

// Profile describes how a runtime wants its options.
type Profile struct {
	Rules           map[string]Rule
	DefaultResource *DefaultResource
	FlagName        func(string) string
	Name            string
	Keys            []string
	Pairs           []ContradictionPair
	// AllowUnknown emits keys missing from Keys after the declared ones,
	// in lexical order.
	AllowUnknown bool
}

func (p *Profile) flagFor(key string, rule Rule) string {
	if rule.Flag != "" {
		return rule.Flag
	}
	if p.FlagName != nil {
		return p.FlagName(key)
	}
	return FlagName(key)
}

// Normalizer resolves option bags against profiles. The filesystem is only
// used to check whether a default resource exists.
type Normalizer struct {
	fs   afero.Fs
	home string
}

func NewNormalizer(fs afero.Fs, home string) *Normalizer {
	return &Normalizer{fs: fs, home: home}
}

// Resolve applies the contradiction pairs to a copy of bag. Only pairs
// where both sides are literally true are touched.
func Resolve(bag options.Bag, pairs []ContradictionPair) options.Bag {
	out := bag.Clone()
	for _, pair := range pairs {
		pos, posOK := out[pair.Positive].(bool)
		neg, negOK := out[pair.Negative].(bool)
		if posOK && negOK && pos && neg {
			log.Debug().Msgf("both %s and %s set, keeping %s", pair.Positive, pair.Negative, pair.Negative)
			out[pair.Positive] = false
		}
	}
	return out
}

// Normalize returns the command line tokens for bag. Terminal arguments are
// appended last and never filtered.
func (n *Normalizer) Normalize(bag options.Bag, p *Profile, terminal ...string) []string {
	resolved := Resolve(bag, p.Pairs)

	args := make([]string, 0, len(resolved)*2+len(terminal)+2)
	for _, key := range p.order(resolved) {
		rule := p.Rules[key]
		args = append(args, n.emit(p.flagFor(key, rule), resolved[key], rule, key)...)
	}

	if res := p.DefaultResource; res != nil && !resolved.HasAny(res.Aliases...) {
		exists, err := afero.Exists(n.fs, res.Path)
		switch {
		case err != nil:
			log.Warn().Err(err).Msgf("error checking default resource: %s", res.Path)
		case exists:
			log.Debug().Msgf("using default resource for %s: %s", p.Name, res.Path)
			args = append(args, res.Flag, res.Path)
		}
	}

	return append(args, terminal...)
}

func (p *Profile) order(bag options.Bag) []string {
	keys := make([]string, 0, len(bag))
	for _, k := range p.Keys {
		if _, ok := bag[k]; ok {
			keys = append(keys, k)
		}
	}

	var rest []string
	for k := range bag {
		if slices.Contains(p.Keys, k) {
			continue
		}
		if !p.AllowUnknown {
			log.Debug().Msgf("%s: ignoring unknown option %q", p.Name, k)
			continue
		}
		rest = append(rest, k)
	}
	slices.Sort(rest)

	return append(keys, rest...)
}

func (n *Normalizer) emit(flag string, value any, rule Rule, key string) []string {
	if rule.Default != nil && equalsDefault(value, rule.Default) {
		return nil
	}

	switch options.KindOf(value) {
	case options.KindNull:
		return nil
	case options.KindBool:
		if value.(bool) { //nolint:forcetypeassert // checked by KindOf
			return []string{flag}
		}
		return nil
	case options.KindNumber:
		f, ok := options.Number(value)
		if !ok {
			log.Warn().Msgf("skipping non-finite value for option %q", key)
			return nil
		}
		if f == 0 && !rule.KeepZero {
			return nil
		}
		if (rule.Min != nil && f < *rule.Min) || (rule.Max != nil && f > *rule.Max) {
			log.Warn().Msgf("option %q out of range: %v", key, f)
			return nil
		}
		return n.pair(flag, options.FormatNumber(f), rule)
	case options.KindString:
		s := strings.TrimSpace(value.(string)) //nolint:forcetypeassert // checked by KindOf
		if s == "" {
			return nil
		}
		return n.pair(flag, s, rule)
	case options.KindList:
		items, _ := options.List(value)
		var out []string
		for _, item := range items {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			out = append(out, n.pair(flag, item, rule)...)
		}
		return out
	case options.KindInvalid:
		log.Warn().Msgf("skipping option %q with unsupported value type %T", key, value)
	}
	return nil
}

func (n *Normalizer) pair(flag, value string, rule Rule) []string {
	if rule.ExpandHome {
		value = options.ExpandTilde(value, n.home)
	}
	if rule.Joined {
		if strings.HasPrefix(value, flag) {
			return []string{value}
		}
		return []string{flag + value}
	}
	return []string{flag, value}
}

func equalsDefault(value, def any) bool {
	if f, ok := options.Number(value); ok {
		d, ok := options.Number(def)
		return ok && f == d
	}
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if d, ok := options.Number(def); ok {
			f, err := strconv.ParseFloat(s, 64)
			return err == nil && f == d
		}
		d, ok := def.(string)
		return ok && s == d
	}
	if b, ok := value.(bool); ok {
		d, ok := def.(bool)
		return ok && b == d
	}
	return false
}
