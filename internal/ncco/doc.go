// Package ncco builds Nexmo Call Control Objects: the JSON action documents
// a voice API executes when a call is answered.
package ncco
