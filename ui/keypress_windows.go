//go:build windows

package ui

import (
	"sync"

	"github.com/eiannone/keyboard"
)

var (
	keyChW     chan rune
	startOnceW sync.Once
)

// StartKeyEvents returns a channel that emits single-key runes read without Enter.
func StartKeyEvents() chan rune {
	startOnceW.Do(func() {
		keyChW = make(chan rune, 64)
		if err := keyboard.Open(); err != nil {
			return
		}
		go func() {
			defer keyboard.Close()
			for {
				char, key, err := keyboard.GetKey()
				if err != nil {
					close(keyChW)
					return
				}
				switch {
				case key == 0:
					select {
					case keyChW <- char:
					default:
					}
				case key == keyboard.KeyEsc:
					select {
					case keyChW <- 27:
					default:
					}
				}
			}
		}()
	})
	if keyChW == nil {
		keyChW = make(chan rune, 64)
	}
	return keyChW
}

// DrainKeys consumes any immediately available keys to avoid accidental triggers.
func DrainKeys() {
	ch := StartKeyEvents()
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
