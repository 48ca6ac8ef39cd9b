// Package integrationtests runs whole projects through the app: HCL
// loading, model compilation, point expansion, the batch runner and the
// written output tables.
package integrationtests
