/*
Package security loads the TLS material burrow uses to reach a protected
store and turns it into an HTTP transport for the etcd client.

Burrow does not issue certificates. Operators point it at a CA bundle and,
for mutual TLS, a client certificate and key; this package checks those
files, parses them once, and hands them to the etcd transport package.

# Architecture

	┌──────────────────── STORE TLS ───────────────────────────┐
	│                                                           │
	│   config.Config                                           │
	│   ETCD_CA_CERT_FILE ─┐                                    │
	│   ETCD_CERT_FILE ────┼──► TLSFiles                        │
	│   ETCD_KEY_FILE ─────┘        │                           │
	│                               ▼                           │
	│                     ClientTransport                       │
	│                       │  LoadCACert     (PEM parse)       │
	│                       │  LoadClientCert (pair + leaf)     │
	│                       │  CertNeedsRotation (warn < 30d)   │
	│                       ▼                                   │
	│            transport.TLSInfo / NewTransport               │
	│                       │                                   │
	│                       ▼                                   │
	│              *http.Transport ──► storage.EtcdStore        │
	└───────────────────────────────────────────────────────────┘

# Usage

	t, err := security.ClientTransport(security.TLSFiles{
		CertFile: "/etc/burrow/client.crt",
		KeyFile:  "/etc/burrow/client.key",
		CAFile:   "/etc/burrow/ca.crt",
	}, security.DefaultDialTimeout)
	if err != nil {
		return err
	}
	store, err := storage.NewEtcdStore(storage.EtcdConfig{
		Endpoints: []string{"https://10.0.0.1:2379"},
		Transport: t,
	})

CheckReadable is the file check used while validating configuration, so
unreadable paths are reported before any connection is attempted.

# Certificate Expiry

A client certificate with less than 30 days left is still used, and a
warning with the remaining time is logged each time a transport is built.
*/
package security
