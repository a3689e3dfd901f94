// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package uaedge

import (
	"fmt"
	"strings"
)

// minApplicationURILength is the shortest application URI discovery
// accepts.
const minApplicationURILength = 5

// FindServers asks the discovery endpoint for registered servers and
// returns the descriptions that survive validation. Descriptions with an
// unsupported application type, a malformed application URI, or a URI or
// locale outside the requested filters are silently dropped.
func (a *Adapter) FindServers(endpointURL string, serverURIs, localeIDs []string) ([]ApplicationDescription, error) {
	if !a.configured() {
		return nil, ErrNotConfigured
	}
	if endpointURL == "" {
		return nil, fmt.Errorf("%w: empty endpoint URL", ErrInvalidRequest)
	}

	a.metrics.ServiceCalls.Add(1)
	found, err := a.stack.FindServers(endpointURL, serverURIs, localeIDs)
	if err != nil {
		a.metrics.ServiceErrors.Add(1)
		return nil, fmt.Errorf("find servers: %w", err)
	}

	servers := make([]ApplicationDescription, 0, len(found))
	for i := range found {
		if a.validApplicationDescription(&found[i], serverURIs, localeIDs) {
			servers = append(servers, found[i])
		} else {
			a.logger.Debug("discovery: application description rejected",
				"uri", found[i].ApplicationURI)
		}
	}
	return servers, nil
}

// GetEndpointInfo fetches the endpoint descriptions of a server and
// delivers them through the discovery callback.
func (a *Adapter) GetEndpointInfo(endpointURL string) error {
	if !a.configured() {
		return ErrNotConfigured
	}
	if endpointURL == "" {
		return fmt.Errorf("%w: empty endpoint URL", ErrInvalidRequest)
	}

	a.metrics.ServiceCalls.Add(1)
	endpoints, err := a.stack.GetEndpoints(endpointURL)
	if err != nil {
		a.metrics.ServiceErrors.Add(1)
		return fmt.Errorf("get endpoints: %w", err)
	}

	device := &Device{Endpoints: endpoints}
	if host, port, _, perr := a.stack.ParseEndpointURL(endpointURL); perr == nil {
		device.Address = host
		device.Port = port
	}
	if len(endpoints) > 0 {
		device.ServerName = endpoints[0].Server.ApplicationName.Text
	}

	if a.cfg.OnEndpointFound != nil {
		a.cfg.OnEndpointFound(device)
	}
	return nil
}

// validApplicationDescription applies the discovery filter rules: the
// application type must be enabled in the configured mask; the
// application URI must be at least 5 characters and either a urn: or a
// parseable endpoint URL with a non-empty host (digit-leading hosts must
// be valid dotted-quad IPv4 addresses); non-empty serverURIs and
// localeIDs lists require exact matches.
func (a *Adapter) validApplicationDescription(d *ApplicationDescription, serverURIs, localeIDs []string) bool {
	if !a.cfg.SupportedApplicationTypes.Supports(d.ApplicationType) {
		return false
	}

	uri := d.ApplicationURI
	if len(uri) < minApplicationURILength {
		return false
	}
	if !strings.HasPrefix(uri, "urn:") {
		host, _, _, err := a.stack.ParseEndpointURL(uri)
		if err != nil || host == "" {
			return false
		}
		if host[0] >= '0' && host[0] <= '9' && !isValidIPv4(host) {
			return false
		}
	}

	if len(serverURIs) > 0 && !containsExact(serverURIs, uri) {
		return false
	}

	if len(localeIDs) > 0 {
		locale := d.ApplicationName.Locale
		if locale == "" || !containsExact(localeIDs, locale) {
			return false
		}
	}
	return true
}

func containsExact(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// isValidIPv4 reports whether s is a dotted-quad IPv4 address: four
// 1-3 digit decimal segments, each at most 255.
func isValidIPv4(s string) bool {
	if len(s) < 7 || len(s) > 15 {
		return false
	}
	value, digits, dots := 0, 0, 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.':
			if digits < 1 || digits > 3 || value > 255 {
				return false
			}
			value, digits = 0, 0
			dots++
		case c < '0' || c > '9':
			return false
		default:
			value = value*10 + int(c-'0')
			digits++
		}
	}
	return dots == 3 && digits >= 1 && digits <= 3 && value <= 255
}
