// Package schedule implements availability search over busy time
// intervals. Busy intervals are clipped to the search horizon, merged
// into disjoint blocks and walked to find gaps of a required duration.
package schedule
