// Package billing implements the cart-to-bill workflow.
//
// Stock is reserved when a catalog line is added to a Cart, adjusted when its
// quantity changes and released when the line is removed or the cart is
// cancelled. Committing a cart turns the reservations into a sale: the Committer
// numbers and persists an immutable Bill and clears the cart without touching
// stock again.
//
// Every reservation is an independent atomic operation on one product. A cart
// holding N products performs N reservations and there is no transaction
// spanning them.
package billing
