/*
Package config reads where the store lives and how to reach it from the
environment.

	ETCD_ENDPOINTS     http[s]://host:port[,...]   overrides the next two
	ETCD_AUTHORITY     host:port                    default 127.0.0.1:2379
	ETCD_SCHEME        http | https                 default http
	ETCD_CA_CERT_FILE  CA bundle, required for https
	ETCD_CERT_FILE     client certificate  (with ETCD_KEY_FILE, or neither)
	ETCD_KEY_FILE      client key
	HOSTNAME           local hostname override

Load validates everything before returning, so a *Error always means no
connection was attempted. TLS files are only checked when the scheme is
https.
*/
package config
