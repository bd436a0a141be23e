// Package registry tracks submitted part uploads by part number and
// reconciles them into the ordered list a multipart completion needs.
package registry
