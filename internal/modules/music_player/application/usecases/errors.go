package usecases

import "errors"

// Errors returned by the command adapters. Their messages are shown to users.
var (
	// ErrNotConnected is returned when an operation requires the bot to be in a voice channel.
	ErrNotConnected = errors.New("I'm not in a voice channel")

	// ErrNotPlaying is returned when no track is currently playing.
	ErrNotPlaying = errors.New("nothing is currently playing")

	// ErrNoResults is returned when a search yields no results.
	ErrNoResults = errors.New("no results found")

	// ErrEmptyQuery is returned when the query is blank.
	ErrEmptyQuery = errors.New("please provide something to search for")

	// ErrLoadFailed is returned when every resolver failed.
	ErrLoadFailed = errors.New("failed to load track")
)
