// Package files discovers the artifacts written by the offline cleaning
// step, such as the pre-rendered visualization images shown next to the
// live charts.
//
// Example usage:
//
//	discovery := files.NewDiscovery("/path/to/data")
//	images, err := discovery.FindImages("visualizations")
package files
