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

package updates

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/zaparoo-runtimes/pkg/shared/httpclient"
	"github.com/tidwall/gjson"
)

const NWjsVersionsURL = "https://nwjs.io/versions.json"

// nwjsArchs maps the file names published by NW.js to GOARCH-style keys.
var nwjsArchs = []struct {
	file string
	arch string
}{
	{file: "osx-x64", arch: "x86_64"},
	{file: "osx-arm64", arch: "arm64"},
}

// NWjsVersions lists the macOS SDK builds NW.js publishes, keyed by version
// and then architecture. Versions without an SDK flavor are skipped.
func NWjsVersions(ctx context.Context, client *httpclient.Client, url string) (map[string]map[string]Descriptor, error) {
	body, err := client.GetBody(ctx, url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nwjs versions: %w", err)
	}
	return parseNWjsVersions(body)
}

func parseNWjsVersions(body []byte) (map[string]map[string]Descriptor, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid nwjs versions: %w", ErrMissingMarker)
	}

	out := make(map[string]map[string]Descriptor)
	gjson.GetBytes(body, "versions").ForEach(func(_, entry gjson.Result) bool {
		v := entry.Get("version").String()
		if v == "" || !contains(entry.Get("flavors"), "sdk") {
			return true
		}

		archs := make(map[string]Descriptor)
		for _, a := range nwjsArchs {
			if !contains(entry.Get("files"), a.file) {
				continue
			}
			archs[a.arch] = Descriptor{
				Runtime: "nwjs",
				Version: v,
				Link:    "https://dl.nwjs.io/" + v + "/nwjs-sdk-" + v + "-" + a.file + ".zip",
				Unzip:   true,
			}
		}
		if len(archs) > 0 {
			out[v] = archs
		}
		return true
	})
	return out, nil
}

func contains(list gjson.Result, want string) bool {
	for _, item := range list.Array() {
		if item.String() == want {
			return true
		}
	}
	return false
}
