// Package domain contains the water-quality types shared between the
// analytics core, the dashboard and the transport layer.
package domain
