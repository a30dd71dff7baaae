// Package recommend ranks chargers for a vehicle under user-supplied
// weights. Candidates are scored on distance, monetary cost, fill time and
// wait time; metrics are normalized by their maxima across candidates and
// combined into a weighted score where lower is better.
package recommend
