// Package anilist implements the upstream GraphQL catalog client used for
// seasonal and airing listings plus single-title detail fetches.
package anilist
