// Package lifecycle reconciles parsed agent reports against the stored
// recommendations and holds of one family, advancing each book through
// recommended, hold_placed, in_transit, ready and picked_up.
//
// A Reconciler is a synchronous batch step run once per external trigger.
// It assumes it is the only writer for the family while it runs. Every
// mutation goes to the store keyed by DocID, and each operation reports the
// number of records it actually changed.
package lifecycle
