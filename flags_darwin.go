// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package mainloop

// kqueue reports a peer half-close through EV_EOF, poll(2) has no
// equivalent request bit.
const pollRDHUP = 0
