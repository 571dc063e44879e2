/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"strings"

	"github.com/carverauto/topology-sync/pkg/models"
)

// IsRetryable is the fault classifier of the HTTP transport. Connection
// resets, timeouts and 5xx answers are retried. Certificate problems,
// malformed responses and other 4xx answers are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var sf *statusFault
	if errors.As(err, &sf) {
		return sf.retryable
	}

	var pe *models.ProtocolError
	if errors.As(err, &pe) {
		return false
	}

	if isTerminalTLS(err) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, errTooManyHops) {
		return false
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "malformed http") || strings.Contains(msg, "unsupported protocol scheme") {
		return false
	}

	return true
}

func isTerminalTLS(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		invalidCert      x509.CertificateInvalidError
		verifyErr        *tls.CertificateVerificationError
		recordHeaderErr  tls.RecordHeaderError
	)

	switch {
	case errors.As(err, &unknownAuthority),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidCert),
		errors.As(err, &verifyErr),
		errors.As(err, &recordHeaderErr):
		return true
	}

	return strings.Contains(err.Error(), "x509:")
}
