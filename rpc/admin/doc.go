// Package admin serves the engine metrics, a health check and the live endpoints of
// a listener over HTTP. It is started by "dsock serve --admin-endpoint".
package admin
