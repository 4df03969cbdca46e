// Package models defines the wire types shared by the dmsa clients.
//
// The types mirror the JSON bodies of the two backend services:
//
//   - user service: [RegisterRequest], [LoginResult], [OAuthLoginResult], [Playlist], [DiscoverUser], [FollowedUser]
//   - media service: [Track], [TrackUpload], [UploadResult]
//
// [Session] is the client-side view of the signed-in user. [PlaylistInput] and [TrackUpload]
// validate themselves so obvious mistakes never reach the network.
package models
