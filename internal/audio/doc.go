// Package audio plays a chime when new content appears on the overlay.
// Sounds are decoded with beep (WAV, OGG and MP3) and chosen per priority.
package audio
