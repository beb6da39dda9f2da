// Package tui is authdeck's terminal interface: one Bubble Tea program with a
// screen per route (home, login, signup, forgot password, profile and not
// found). Screens mount on navigation and unmount when they leave the stack
// top, taking their session subscription and in-flight form actions with them.
package tui
