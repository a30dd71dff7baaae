// Package simulation synthesizes the real-time energy feed of an active
// charging session. One Engine per charger ticks on a fixed period and
// emits randomized power samples until it reaches a randomized energy
// target or is stopped. The Registry owns all live engines and enforces
// one engine per charger.
package simulation
