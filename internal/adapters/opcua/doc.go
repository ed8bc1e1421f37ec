// Package opcua polls weather quantities published as OPC UA variables.
package opcua
