// Package s3 implements blobstore.BlobStore on Amazon S3 and
// compatible object stores. Side-files upload through streaming
// multipart writes with CRC32C validation; reads use ranged GetObject
// calls.
//
// DDBCommitStore layers a DynamoDB commit log on top for atomically
// publishing statistics generations from concurrent writers.
package s3
